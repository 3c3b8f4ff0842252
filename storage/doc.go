// Package storage provides content-addressed storage for history snapshots
// with pluggable backends.
//
// Content is identified by the SHA-256 hash of its bytes, so storing the same
// snapshot twice yields the same ContentID on every backend:
//
//   - file:///var/lib/vehicle-registry/      local directory
//   - s3://bucket-name/prefix/?region=eu-west-1&endpoint=...
//   - ipfs://127.0.0.1:5001/?timeout=30s    IPFS node, mutable file system
//
// Backends are created from location URIs by StorageBackendFactory.
// MultiStorageBackend stores to every available backend and fetches from the
// first one holding the content.
//
//	factory := storage.NewStorageBackendFactory(log)
//	backend, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
//	    "file:///var/lib/vehicle-registry",
//	    "s3://snapshots/vehicles?region=eu-west-1",
//	})
//	id, err := backend.Store(ctx, data)
package storage
