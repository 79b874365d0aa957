package filestore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andrej220/rdeploy/pkg/config/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Host   string `yaml:"host"`
	Branch string `yaml:"branch"`
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	store := filestore.New(path)

	require.NoError(t, store.Save(doc{Host: "rdtone", Branch: "develop"}))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	var got doc
	require.NoError(t, store.Load(&got))
	assert.Equal(t, doc{Host: "rdtone", Branch: "develop"}, got)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("host: [unterminated"), 0600))

	tests := []struct {
		name string
		path string
		out  any
	}{
		{"nil output", empty, nil},
		{"missing file", filepath.Join(dir, "nope.yaml"), &doc{}},
		{"empty file", empty, &doc{}},
		{"invalid yaml", broken, &doc{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, filestore.New(tt.path).Load(tt.out))
		})
	}
}

func TestSaveNil(t *testing.T) {
	assert.Error(t, filestore.New(filepath.Join(t.TempDir(), "x.yaml")).Save(nil))
}
