package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
	"github.com/zalando/go-keyring"
)

const serviceName = "market"

// ErrNotFound is returned when no credentials are stored for an origin.
var ErrNotFound = errors.New("credentials not found")

// LockTimeout bounds how long the file store waits for another process.
const LockTimeout = 2 * time.Second

// Credentials holds an API token and metadata.
type Credentials struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Store handles credential storage, preferring the system keyring and
// falling back to a JSON file guarded by an advisory lock.
type Store struct {
	useKeyring  bool
	fallbackDir string
}

// NewStore creates a credential store.
func NewStore(fallbackDir string) *Store {
	if os.Getenv("MARKET_NO_KEYRING") != "" {
		return NewFileStore(fallbackDir)
	}

	testKey := serviceName + "::probe"
	if err := keyring.Set(serviceName, testKey, "probe"); err == nil {
		_ = keyring.Delete(serviceName, testKey) // Best-effort cleanup
		return &Store{useKeyring: true, fallbackDir: fallbackDir}
	}
	fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, credentials stored in plaintext at %s\n",
		filepath.Join(fallbackDir, "credentials.json"))
	return NewFileStore(fallbackDir)
}

// NewFileStore creates a store that never touches the keyring.
func NewFileStore(dir string) *Store {
	return &Store{fallbackDir: dir}
}

// UsingKeyring reports whether the system keyring backs the store.
func (s *Store) UsingKeyring() bool { return s.useKeyring }

// Location describes where credentials live, for status output.
func (s *Store) Location() string {
	if s.useKeyring {
		return "system keyring"
	}
	return s.credentialsPath()
}

func key(origin string) string {
	return serviceName + "::" + origin
}

// Load retrieves credentials for the given origin.
func (s *Store) Load(origin string) (*Credentials, error) {
	if s.useKeyring {
		data, err := keyring.Get(serviceName, key(origin))
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("reading keyring: %w", err)
		}
		var creds Credentials
		if err := json.Unmarshal([]byte(data), &creds); err != nil {
			return nil, fmt.Errorf("invalid credentials: %w", err)
		}
		return &creds, nil
	}

	var creds *Credentials
	err := s.withLock(func() error {
		all, err := s.loadAllFromFile()
		if err != nil {
			return err
		}
		c, ok := all[origin]
		if !ok {
			return ErrNotFound
		}
		creds = c
		return nil
	})
	return creds, err
}

// Save stores credentials for the given origin.
func (s *Store) Save(origin string, creds *Credentials) error {
	if s.useKeyring {
		data, err := json.Marshal(creds)
		if err != nil {
			return err
		}
		return keyring.Set(serviceName, key(origin), string(data))
	}

	return s.withLock(func() error {
		all, err := s.loadAllFromFile()
		if err != nil {
			return err
		}
		all[origin] = creds
		return s.saveAllToFile(all)
	})
}

// Delete removes credentials for the given origin. Missing credentials are
// not an error.
func (s *Store) Delete(origin string) error {
	if s.useKeyring {
		err := keyring.Delete(serviceName, key(origin))
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}

	return s.withLock(func() error {
		all, err := s.loadAllFromFile()
		if err != nil {
			return err
		}
		if _, ok := all[origin]; !ok {
			return nil
		}
		delete(all, origin)
		return s.saveAllToFile(all)
	})
}

func (s *Store) credentialsPath() string {
	return filepath.Join(s.fallbackDir, "credentials.json")
}

// withLock runs fn holding an exclusive lock so concurrent CLI processes
// don't interleave read-modify-write cycles on the credentials file.
func (s *Store) withLock(fn func() error) error {
	if err := os.MkdirAll(s.fallbackDir, 0o700); err != nil {
		return err
	}

	fl := flock.New(filepath.Join(s.fallbackDir, ".credentials.lock"))
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("locking credentials: %w", err)
	}
	if !locked {
		return fmt.Errorf("locking credentials: timed out after %s", LockTimeout)
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}

func (s *Store) loadAllFromFile() (map[string]*Credentials, error) {
	data, err := os.ReadFile(s.credentialsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*Credentials), nil
		}
		return nil, err
	}

	all := make(map[string]*Credentials)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.credentialsPath(), err)
	}
	return all, nil
}

func (s *Store) saveAllToFile(all map[string]*Credentials) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(s.fallbackDir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0o600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	destPath := s.credentialsPath()
	if err := os.Rename(tmpPath, destPath); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(destPath)
			return os.Rename(tmpPath, destPath)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}
