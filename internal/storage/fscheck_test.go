package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFilesystemRejectsNetworkMounts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "octox.db")

	err := checkFilesystem(dbPath, func(string) (string, error) { return "NFS", nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network filesystem")
}

func TestCheckFilesystemAllowsLocal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "octox.db")

	var inspected string
	err := checkFilesystem(dbPath, func(p string) (string, error) {
		inspected = p
		return "ext4", nil
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(dbPath), inspected, "missing file resolves to its directory")
}

func TestCheckFilesystemIgnoresDetectorFailure(t *testing.T) {
	err := checkFilesystem(filepath.Join(t.TempDir(), "octox.db"), func(string) (string, error) {
		return "", errors.New("unsupported")
	})
	assert.NoError(t, err)
}
