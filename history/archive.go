package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ruteri/vehicle-registry/interfaces"
)

// Archive stores history snapshots in a content-addressed backend. Equal
// histories always map to the same content id.
type Archive struct {
	backend interfaces.StorageBackend
	log     *slog.Logger
}

// NewArchive creates an archive on backend.
func NewArchive(backend interfaces.StorageBackend, log *slog.Logger) *Archive {
	return &Archive{backend: backend, log: log}
}

// Store saves history and returns its content id.
func (a *Archive) Store(ctx context.Context, history *interfaces.History) (interfaces.ContentID, error) {
	data, err := MarshalSnapshot(history)
	if err != nil {
		return interfaces.ContentID{}, err
	}
	id, err := a.backend.Store(ctx, data)
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("storing snapshot of %s: %w", history.Registration, err)
	}

	a.log.Info("Archived history snapshot",
		slog.String("registration", history.Registration.String()),
		slog.String("contentID", id.String()),
		slog.String("backend", a.backend.Name()))
	return id, nil
}

// Fetch loads a snapshot by content id and verifies its hash.
func (a *Archive) Fetch(ctx context.Context, id interfaces.ContentID) (*interfaces.History, error) {
	data, err := a.backend.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if got := interfaces.ComputeID(data); !got.Equal(id) {
		return nil, fmt.Errorf("snapshot %s has content id %s", id, got)
	}

	var history interfaces.History
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", id, err)
	}
	return &history, nil
}

// MarshalSnapshot encodes history canonically. Degraded histories are
// refused.
func MarshalSnapshot(history *interfaces.History) ([]byte, error) {
	if history.Degraded {
		return nil, fmt.Errorf("refusing to archive degraded history of %s", history.Registration)
	}
	data, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// Backend returns the name of the storage backend snapshots go to.
func (a *Archive) Backend() string {
	return a.backend.Name()
}
