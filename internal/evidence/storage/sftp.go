package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"rcaflow/pkg/platform/sentinel"
)

type SFTPConfig struct {
	Addr           string
	User           string
	Password       string
	PrivateKeyPath string
	// HostKey is the server key in authorized_keys format. Empty disables
	// host key verification.
	HostKey     string
	RootDir     string
	DialTimeout time.Duration
}

// SFTPStore writes objects to a remote directory over SSH. The connection
// is opened lazily and re-established after a failure.
type SFTPStore struct {
	cfg    SFTPConfig
	ssh    *ssh.ClientConfig
	logger *slog.Logger

	mu     sync.Mutex
	conn   *ssh.Client
	client *sftp.Client
}

func NewSFTPStore(cfg SFTPConfig, logger *slog.Logger) (*SFTPStore, error) {
	var auth []ssh.AuthMethod
	if cfg.PrivateKeyPath != "" {
		pem, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read sftp private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse sftp private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("sftp needs a password or a private key")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.HostKey != "" {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.HostKey))
		if err != nil {
			return nil, fmt.Errorf("parse sftp host key: %w", err)
		}
		hostKey = ssh.FixedHostKey(pub)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SFTPStore{
		cfg: cfg,
		ssh: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         cfg.DialTimeout,
		},
		logger: logger,
	}, nil
}

// session returns a live client, connecting if needed. Callers hold mu.
func (s *SFTPStore) session() (*sftp.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	conn, err := ssh.Dial("tcp", s.cfg.Addr, s.ssh)
	if err != nil {
		return nil, fmt.Errorf("%w: dial sftp: %v", sentinel.ErrUnavailable, err)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open sftp session: %v", sentinel.ErrUnavailable, err)
	}
	s.conn, s.client = conn, client
	s.logger.Info("sftp storage connected", "addr", s.cfg.Addr, "user", s.cfg.User)
	return client, nil
}

// reset drops the connection after a transport error. Callers hold mu.
func (s *SFTPStore) reset() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.client, s.conn = nil, nil
}

func (s *SFTPStore) remote(key string) string {
	return path.Join(s.cfg.RootDir, path.Clean("/"+key))
}

// do runs fn with a session and reconnects once when the connection was lost.
func (s *SFTPStore) do(fn func(c *sftp.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for attempt := 0; ; attempt++ {
		c, err := s.session()
		if err != nil {
			return err
		}
		err = fn(c)
		if connectionLost(err) && attempt == 0 {
			s.logger.Warn("sftp connection lost, reconnecting", "addr", s.cfg.Addr)
			s.reset()
			continue
		}
		return err
	}
}

func (s *SFTPStore) Put(_ context.Context, key string, r io.Reader) (int64, error) {
	target := s.remote(key)
	var n int64
	err := s.do(func(c *sftp.Client) error {
		if err := c.MkdirAll(path.Dir(target)); err != nil {
			return fmt.Errorf("create remote dir: %w", err)
		}
		f, err := c.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("create remote object: %w", err)
		}
		n, err = io.Copy(f, r)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = c.Remove(target)
			return fmt.Errorf("write remote object: %w", err)
		}
		return nil
	})
	return n, err
}

// Open holds the session lock until the returned reader is closed.
func (s *SFTPStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	c, err := s.session()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	f, err := c.Open(s.remote(key))
	if err != nil {
		if connectionLost(err) {
			s.reset()
		}
		s.mu.Unlock()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("open remote object: %w", err)
	}
	return &lockedFile{File: f, unlock: s.mu.Unlock}, nil
}

func connectionLost(err error) bool {
	return errors.Is(err, sftp.ErrSSHFxConnectionLost) || errors.Is(err, sftp.ErrSSHFxNoConnection) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

type lockedFile struct {
	*sftp.File
	once   sync.Once
	unlock func()
}

func (f *lockedFile) Close() error {
	err := f.File.Close()
	f.once.Do(f.unlock)
	return err
}

func (s *SFTPStore) Delete(_ context.Context, key string) error {
	return s.do(func(c *sftp.Client) error {
		if err := c.Remove(s.remote(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete remote object: %w", err)
		}
		return nil
	})
}

func (s *SFTPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
