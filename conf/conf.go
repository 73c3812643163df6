package conf

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// zsync block hashes need pieces that split evenly into 4096 byte blocks.
const zsyncAlignment = 4096

type Config struct {
	SyncFolder    string
	DBPath        string
	Port          string
	BlockSize     int
	ChunkSize     int64
	ZsyncHashes   bool
	ChunkedHashes bool
	SyncInterval  time.Duration
	Announce      bool
	LogLevel      string
}

// Default returns the settings used when a flag is not given.
func Default() Config {
	return Config{
		DBPath:        "./badgerdb",
		Port:          "50051",
		BlockSize:     4096,
		ChunkSize:     262144,
		ZsyncHashes:   false,
		ChunkedHashes: true,
		SyncInterval:  time.Minute,
		Announce:      true,
		LogLevel:      "info",
	}
}

func (c Config) Validate() error {
	if c.SyncFolder == "" {
		return fmt.Errorf("%w: sync folder is required", ErrInvalidConfig)
	}
	if c.Port == "" {
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	}
	if c.BlockSize <= 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("%w: block size %d is not a positive power of two", ErrInvalidConfig, c.BlockSize)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ZsyncHashes && c.ChunkSize%zsyncAlignment != 0 {
		return fmt.Errorf("%w: chunk size %d must be a multiple of %d when zsync hashes are enabled", ErrInvalidConfig, c.ChunkSize, zsyncAlignment)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("%w: sync interval must be positive", ErrInvalidConfig)
	}
	return nil
}
