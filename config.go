package registry

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/outofforest/registry/wire"
)

// DefaultMaxFiles is the default number of files indexed per peer.
const DefaultMaxFiles = 10

// ServerConfig defines registry configuration.
type ServerConfig struct {
	// MaxFiles is the number of files from a single PUBLISH which are indexed. The rest is consumed and dropped.
	MaxFiles int `toml:"maxFiles"`
}

// DefaultServerConfig returns the default registry configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxFiles: DefaultMaxFiles,
	}
}

// LoadServerConfig loads registry configuration from TOML file. Missing keys keep their default values.
func LoadServerConfig(path string) (ServerConfig, error) {
	config := DefaultServerConfig()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return ServerConfig{}, errors.Wrapf(err, "parsing config file %q failed", path)
	}
	return config, config.Validate()
}

// Validate checks if configuration values are valid.
func (c ServerConfig) Validate() error {
	if c.MaxFiles < 1 {
		return errors.Errorf("invalid maxFiles: %d (must be >= 1)", c.MaxFiles)
	}
	return nil
}

// ClientConfig is the config of the peer client.
type ClientConfig struct {
	// PeerID is the identity announced by JOIN.
	PeerID wire.PeerID

	// Registry is the host:port of the registry.
	Registry string

	// LocalAddr, if set, is the address the registry connection originates from. The socket is opened with
	// SO_REUSEPORT so the same address may be used by the file server, making the address advertised by the
	// registry reachable for FETCH.
	LocalAddr string

	// DownloadDir is where fetched files are stored.
	DownloadDir string
}
