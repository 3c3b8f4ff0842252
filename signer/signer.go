// Package signer loads the Algorand account that signs registry calls, either
// from a 25-word mnemonic or from a Vault KV v2 secret holding one.
package signer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/hashicorp/vault/api"
)

// MnemonicKey is the field of the Vault secret holding the mnemonic.
const MnemonicKey = "mnemonic"

var (
	ErrSecretNotFound = errors.New("signer secret not found")
	ErrInvalidSecret  = errors.New("invalid signer secret")
)

// FromMnemonic derives an account from a 25-word mnemonic.
func FromMnemonic(phrase string) (*crypto.Account, error) {
	phrase = strings.Join(strings.Fields(phrase), " ")
	sk, err := mnemonic.ToPrivateKey(phrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	account, err := crypto.AccountFromPrivateKey(sk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return &account, nil
}

// VaultConfig locates the signer secret in Vault.
type VaultConfig struct {
	Address string
	Token   string
	// SecretPath is the full KV v2 read path, e.g. "secret/data/vehicle-registry/signer".
	SecretPath string
	Timeout    time.Duration
}

// VaultLoader reads the signer mnemonic from a Vault KV v2 secret.
type VaultLoader struct {
	client *api.Client
	path   string
	log    *slog.Logger
}

// NewVaultLoader creates a Vault client for cfg.
func NewVaultLoader(cfg VaultConfig, log *slog.Logger) (*VaultLoader, error) {
	if cfg.SecretPath == "" {
		return nil, fmt.Errorf("vault secret path is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.HttpClient = &http.Client{Timeout: cfg.Timeout}
	config.MaxRetries = 0

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &VaultLoader{
		client: client,
		path:   strings.Trim(cfg.SecretPath, "/"),
		log:    log,
	}, nil
}

// Load reads the secret and derives the account from its mnemonic.
func (l *VaultLoader) Load(ctx context.Context) (*crypto.Account, error) {
	secret, err := l.client.Logical().ReadWithContext(ctx, l.path)
	if err != nil {
		l.log.Error("Failed to read signer secret from Vault",
			slog.String("path", l.path),
			"err", err)
		return nil, fmt.Errorf("reading %s: %w", l.path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, l.path)
	}

	// KV v2 nests the payload under "data".
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a KV v2 secret", ErrInvalidSecret, l.path)
	}
	phrase, ok := data[MnemonicKey].(string)
	if !ok || phrase == "" {
		return nil, fmt.Errorf("%w: %s has no %q field", ErrInvalidSecret, l.path, MnemonicKey)
	}

	account, err := FromMnemonic(phrase)
	if err != nil {
		return nil, err
	}
	l.log.Info("Loaded signer account from Vault",
		slog.String("path", l.path),
		slog.String("address", account.Address.String()))
	return account, nil
}
