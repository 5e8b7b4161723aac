package storage

import (
	"fmt"
	"io"
	"log/slog"

	"rcaflow/internal/platform/config"
)

// Closer is implemented by both backends.
type Closer interface {
	ObjectStore
	io.Closer
}

// FromConfig opens the configured backend.
func FromConfig(cfg config.StorageConfig, logger *slog.Logger) (Closer, error) {
	switch cfg.Backend {
	case "", "fs":
		s, err := NewFSStore(cfg.RootDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sftp":
		s, err := NewSFTPStore(SFTPConfig{
			Addr:           cfg.SFTP.Addr,
			User:           cfg.SFTP.User,
			Password:       cfg.SFTP.Password,
			PrivateKeyPath: cfg.SFTP.PrivateKeyPath,
			HostKey:        cfg.SFTP.HostKey,
			RootDir:        cfg.SFTP.RootDir,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
