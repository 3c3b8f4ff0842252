package storage

import (
	"path/filepath"
	"testing"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageBackendFor(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger())
	dir := t.TempDir()

	t.Run("file", func(t *testing.T) {
		backend, err := factory.StorageBackendFor(interfaces.StorageBackendLocation("file://" + dir))
		require.NoError(t, err)
		assert.IsType(t, &FileBackend{}, backend)
		assert.Equal(t, "file-"+filepath.Base(dir), backend.Name())
	})

	t.Run("ipfs", func(t *testing.T) {
		backend, err := factory.StorageBackendFor("ipfs://localhost:5001/?timeout=5s")
		require.NoError(t, err)
		assert.IsType(t, &IPFSBackend{}, backend)
	})

	t.Run("s3", func(t *testing.T) {
		backend, err := factory.StorageBackendFor("s3://KEY:SECRET@snapshots/prefix/?region=eu-west-1&endpoint=http://localhost:9000")
		require.NoError(t, err)
		assert.IsType(t, &S3Backend{}, backend)
	})

	invalid := []interfaces.StorageBackendLocation{
		"ftp://example.com/data",
		"ipfs://localhost:5001/?timeout=soon",
		"ipfs:///no-host",
		"s3:///no-bucket",
		"file://",
		"://broken",
	}
	for _, uri := range invalid {
		t.Run(string(uri), func(t *testing.T) {
			_, err := factory.StorageBackendFor(uri)
			assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
		})
	}
}

func TestCreateMultiBackend(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger())

	single, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		interfaces.StorageBackendLocation("file://" + t.TempDir()),
		"ftp://ignored",
	})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, single)

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		interfaces.StorageBackendLocation("file://" + t.TempDir()),
		interfaces.StorageBackendLocation("file://" + t.TempDir()),
	})
	require.NoError(t, err)
	assert.IsType(t, &MultiStorageBackend{}, multi)

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{"ftp://nope"})
	assert.Error(t, err)
}
