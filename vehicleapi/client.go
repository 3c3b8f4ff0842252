// Package vehicleapi looks up static vehicle data (make, model, year) from an
// external HTTP service. Registry state never depends on it.
package vehicleapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/metrics"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultCacheTTL    = time.Hour
	DefaultNegativeTTL = time.Minute

	maxResponseSize = 1 << 20
)

// ErrLookupFailed is returned when the lookup service cannot be reached or
// answers with something other than a vehicle or a 404.
var ErrLookupFailed = errors.New("vehicle lookup failed")

// Config configures a Client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	CacheTTL    time.Duration
	NegativeTTL time.Duration
}

// lookupResponse is the service's wire format.
type lookupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		Registration string `json:"registration"`
		Vin          string `json:"vin"`
		Make         string `json:"make"`
		Model        string `json:"model"`
		Year         int    `json:"year"`
		Color        string `json:"color"`
		FuelType     string `json:"fuelType"`
		EngineSize   string `json:"engineSize"`
	} `json:"data"`
}

// Client implements interfaces.VehicleLookup over HTTP with a TTL cache for
// hits and a shorter one for unknown registrations.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	hits        *cache.Cache
	misses      *cache.Cache
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// NewClient creates a lookup client. httpClient and m may be nil.
func NewClient(cfg Config, httpClient *http.Client, m *metrics.Metrics, log *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid vehicle API base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = DefaultNegativeTTL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  httpClient,
		hits:        cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		misses:      cache.New(cfg.NegativeTTL, cfg.NegativeTTL*2),
		metrics:     m,
		log:         log,
	}, nil
}

// Lookup returns static data for registration, or ErrVehicleNotFound.
func (c *Client) Lookup(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleData, error) {
	registration = interfaces.NormalizeRegistration(string(registration))
	if err := registration.Validate(); err != nil {
		return nil, err
	}
	key := registration.String()

	if v, ok := c.hits.Get(key); ok {
		c.metrics.RecordVehicleLookup("hit")
		data := *v.(*interfaces.VehicleData)
		return &data, nil
	}
	if _, ok := c.misses.Get(key); ok {
		c.metrics.RecordVehicleLookup("not_found")
		return nil, interfaces.ErrVehicleNotFound
	}

	data, err := c.fetch(ctx, registration)
	switch {
	case errors.Is(err, interfaces.ErrVehicleNotFound):
		c.misses.Set(key, struct{}{}, cache.DefaultExpiration)
		c.metrics.RecordVehicleLookup("not_found")
		return nil, err
	case err != nil:
		c.metrics.RecordVehicleLookup("error")
		c.log.Warn("Vehicle lookup failed",
			slog.String("registration", key),
			"err", err)
		return nil, err
	}

	c.hits.Set(key, data, cache.DefaultExpiration)
	c.metrics.RecordVehicleLookup("miss")
	out := *data
	return &out, nil
}

func (c *Client) fetch(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleData, error) {
	endpoint := c.baseURL + "/api/vehicles/" + url.PathEscape(registration.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	c.log.Debug("Vehicle lookup",
		slog.String("registration", registration.String()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode == http.StatusNotFound {
		return nil, interfaces.ErrVehicleNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrLookupFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrLookupFailed, err)
	}

	var parsed lookupResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrLookupFailed, err)
	}
	if !parsed.Success || parsed.Data == nil {
		return nil, interfaces.ErrVehicleNotFound
	}

	d := parsed.Data
	return &interfaces.VehicleData{
		Registration: registration,
		Make:         d.Make,
		Model:        d.Model,
		Year:         d.Year,
		Colour:       d.Color,
		FuelType:     d.FuelType,
		EngineSize:   d.EngineSize,
		Vin:          d.Vin,
	}, nil
}
