// Package jsonstore persists whole JSON documents so that concurrent writers,
// including other OS processes, never leave a half-written file behind.
//
// A write serialises the value into a sibling temp file, locks it, fsyncs it
// and renames it over the destination. Reads take a best-effort shared lock
// and never fail loudly: a missing or unparsable document is reported as
// absent, and an unparsable one is moved aside with a ".backup" suffix so the
// caller can start over from defaults.
package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/filelock"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
)

// Document names, relative to the data directory.
const (
	DocUsers    = "users/users.json"
	DocSessions = "sessions/active_sessions.json"
	DocQuota    = "quota_management.json"
	DocUsage    = "daily_usage.json"
)

// AllDocuments lists every document the access-control core owns.
var AllDocuments = []string{DocUsers, DocSessions, DocQuota, DocUsage}

var (
	ErrReadOnly    = errors.New("store is read-only during maintenance")
	ErrLockTimeout = errors.New("could not acquire file lock")
	ErrBadName     = errors.New("invalid document name")
)

const (
	DefaultRetries = 3
	DefaultBackoff = 100 * time.Millisecond

	tempSuffix   = ".tmp"
	backupSuffix = ".backup"
)

// Documents is the storage contract used by the managers.
//
// Read fills v and returns true when the document exists and parses. False
// means "no data yet"; it does not prove the data set is empty.
type Documents interface {
	Read(ctx context.Context, name string, v any) bool
	Write(ctx context.Context, name string, v any) error
	Exists(ctx context.Context, name string) bool
}

// ReadOnlyChecker is consulted before every write.
type ReadOnlyChecker interface {
	ReadOnly(ctx context.Context) bool
}

type Store struct {
	root    string
	locker  filelock.Locker
	gate    ReadOnlyChecker
	logger  logging.Logger
	retries int
	backoff time.Duration
	sleep   func(time.Duration)

	mu    sync.Mutex
	paths map[string]*sync.Mutex
}

type Option func(*Store)

// WithGate blocks writes while the checker reports read-only mode.
func WithGate(g ReadOnlyChecker) Option {
	return func(s *Store) { s.gate = g }
}

// WithRetry overrides the lock retry policy. The wait doubles after every
// failed attempt: base, 2*base, 4*base...
func WithRetry(attempts int, base time.Duration) Option {
	return func(s *Store) {
		if attempts > 0 {
			s.retries = attempts
		}
		s.backoff = base
	}
}

func New(root string, locker filelock.Locker, l logging.Logger, opts ...Option) *Store {
	s := &Store{
		root:    root,
		locker:  locker,
		logger:  l.With("module", "jsonstore"),
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		sleep:   time.Sleep,
		paths:   make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}

	if locker.Name() == (filelock.None{}).Name() {
		s.logger.Warn(context.Background(), "file locking disabled, relying on atomic rename only", "root", root)
	}
	return s
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

// Path resolves a document name inside the data directory.
func (s *Store) Path(name string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return filepath.Join(s.root, filepath.FromSlash(name)), nil
}

func (s *Store) pathMutex(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.paths[path]
	if !ok {
		m = &sync.Mutex{}
		s.paths[path] = m
	}
	return m
}

func (s *Store) Exists(_ context.Context, name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func encode(v any) ([]byte, error) {
	return marshal(v, "  ")
}

// Marshal is the compact form of the document encoding: no HTML escaping
// and no trailing newline. Other Documents backends use it so that every
// backend stores the same text.
func Marshal(v any) ([]byte, error) {
	data, err := marshal(v, "")
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(data, []byte("\n")), nil
}

func marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write atomically replaces the document with v.
func (s *Store) Write(ctx context.Context, name string, v any) error {
	if s.gate != nil && s.gate.ReadOnly(ctx) {
		s.logger.Warn(ctx, "write blocked by maintenance lock", "document", name)
		return ErrReadOnly
	}

	path, err := s.Path(name)
	if err != nil {
		return err
	}

	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	m := s.pathMutex(path)
	m.Lock()
	defer m.Unlock()

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		lastErr = s.writeOnce(path, data)
		if lastErr == nil {
			return nil
		}
		if attempt < s.retries-1 {
			s.logger.Warn(ctx, "file lock failed, retrying",
				"document", name, "attempt", attempt+1, "max", s.retries, "error", lastErr)
			s.sleep(s.retryDelay(attempt))
		}
	}

	s.logger.Error(ctx, "write failed", "document", name, "attempts", s.retries, "error", lastErr)
	return fmt.Errorf("%w: %s: %v", ErrLockTimeout, name, lastErr)
}

func (s *Store) writeOnce(path string, data []byte) (err error) {
	tmp := path + tempSuffix

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.locker.Lock(f, true); err != nil {
		return err
	}
	defer func() { _ = s.locker.Unlock(f) }()

	// Another writer may have renamed this inode into place while we waited.
	if err := sameFile(f, tmp); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func sameFile(f *os.File, path string) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	pi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !os.SameFile(fi, pi) {
		return errors.New("temp file replaced by concurrent writer")
	}
	return nil
}

// Read decodes the document into v. It returns false when the document is
// missing or corrupt; a corrupt document is renamed to name+".backup".
func (s *Store) Read(ctx context.Context, name string, v any) bool {
	path, err := s.Path(name)
	if err != nil {
		s.logger.Error(ctx, "read rejected", "document", name, "error", err)
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error(ctx, "open failed", "document", name, "error", err)
		}
		return false
	}
	defer f.Close()

	if s.lockShared(f) {
		defer func() { _ = s.locker.Unlock(f) }()
	} else {
		s.logger.Debug(ctx, "reading without shared lock", "document", name)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		s.logger.Error(ctx, "read failed", "document", name, "error", err)
		return false
	}

	if err := json.Unmarshal(buf.Bytes(), v); err != nil {
		s.logger.Error(ctx, "corrupt document, moving aside", "document", name, "error", err)
		if rerr := os.Rename(path, path+backupSuffix); rerr != nil {
			s.logger.Error(ctx, "backup of corrupt document failed", "document", name, "error", rerr)
		}
		return false
	}
	return true
}

func (s *Store) retryDelay(attempt int) time.Duration {
	return s.backoff << attempt
}

func (s *Store) lockShared(f *os.File) bool {
	for attempt := 0; attempt < s.retries; attempt++ {
		if err := s.locker.Lock(f, false); err == nil {
			return true
		}
		if attempt < s.retries-1 {
			s.sleep(s.retryDelay(attempt))
		}
	}
	return false
}
