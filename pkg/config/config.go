package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrej220/rdeploy/pkg/config/configstore"
	"github.com/andrej220/rdeploy/pkg/config/filestore"
	"github.com/andrej220/rdeploy/pkg/config/mongostore"
)

type StoreType int

const (
	FileStore StoreType = iota
	MongoStore
)

var (
	ErrInvalidStoreType = errors.New("invalid store type")
)

type FileConfig struct {
	Path string `yaml:"path" json:"path"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" json:"uri"`
	DBName   string `yaml:"dbName" json:"dbName"`
	CollName string `yaml:"collName" json:"collName"`
	ID       string `yaml:"id" json:"id"` // Document ID
}

// ParseStoreType maps a --store flag value to a StoreType.
func ParseStoreType(s string) (StoreType, error) {
	switch strings.ToLower(s) {
	case "", "file":
		return FileStore, nil
	case "mongo":
		return MongoStore, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStoreType, s)
	}
}

// NewStore opens the configuration store of the given type. Stores that hold
// a connection also implement io.Closer.
func NewStore(storeType StoreType, cfg any) (configstore.ConfigStore, error) {
	switch storeType {
	case FileStore:
		fileCfg, ok := cfg.(*FileConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for file store, expected *FileConfig")
		}
		return filestore.New(fileCfg.Path), nil
	case MongoStore:
		mongoCfg, ok := cfg.(*MongoConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for mongo store, expected *MongoConfig")
		}
		return mongostore.New(mongoCfg.URI, mongoCfg.DBName, mongoCfg.CollName, mongoCfg.ID)
	default:
		return nil, ErrInvalidStoreType
	}
}

// CloseStore releases the store's connection, if it has one.
func CloseStore(store configstore.ConfigStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Load reads the deployment configuration from store, fills in the values
// derived from the project name and validates the result.
func Load(store configstore.ConfigStore) (*File, error) {
	f := &File{}
	if err := store.Load(f); err != nil {
		return nil, err
	}
	if err := f.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Copy stores the document held by src in dst. The document must load and
// validate; it is saved as written, without the derived defaults.
func Copy(src, dst configstore.ConfigStore) (*File, error) {
	checked, err := Load(src)
	if err != nil {
		return nil, err
	}
	raw := &File{}
	if err := src.Load(raw); err != nil {
		return nil, err
	}
	if err := dst.Save(raw); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	return checked, nil
}
