package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/sessfile/internal/observability"
)

const fileExt = ".yml"

// DefaultFileMode restricts session files to the owning user; session
// data is sensitive.
const DefaultFileMode os.FileMode = 0600

// Config holds the settings for a Store. Dir is required: there is no
// implicit fallback to a previously configured directory.
type Config struct {
	// Dir is the session directory. All session files live directly
	// under it.
	Dir string

	// FileMode is applied when a session file is created. Zero means
	// DefaultFileMode.
	FileMode os.FileMode

	// LockTimeout bounds the wait for the exclusive file lock in
	// Retrieve and Flush. Zero means block until the lock is granted.
	LockTimeout time.Duration
}

// Store persists session records as one YAML file per id under a
// single directory. Concurrent operations on the same id serialize on
// the file's advisory exclusive lock; operations on different ids are
// independent.
type Store struct {
	dir         string
	mode        os.FileMode
	lockTimeout time.Duration
	registry    *DirRegistry
	logger      zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRegistry shares a directory registry across stores. Without it
// each store owns a private registry.
func WithRegistry(r *DirRegistry) Option {
	return func(s *Store) { s.registry = r }
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a store bound to cfg.Dir, ensuring the directory exists.
func New(cfg Config, opts ...Option) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.Dir == "" {
		return nil, errors.New("session directory is required")
	}

	mode := cfg.FileMode
	if mode == 0 {
		mode = DefaultFileMode
	}

	s := &Store{
		dir:         cfg.Dir,
		mode:        mode,
		lockTimeout: cfg.LockTimeout,
		registry:    NewDirRegistry(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.registry.EnsureInitialized(s.dir); err != nil {
		return nil, err
	}

	s.logger.Info().Str("dir", s.dir).Msg("Session store initialized")
	s.updateActiveSessions()

	return s, nil
}

// validateID rejects ids that would escape the session directory or
// produce unusable file names.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q contains '..'", ErrInvalidID, id)
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidID, id)
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("%w: %q contains a null byte", ErrInvalidID, id)
	}
	return nil
}

// PathFor returns the file path for a session id. No I/O.
func (s *Store) PathFor(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

// Create builds a new in-memory record from attrs. The id is taken
// from attrs["id"] when present, otherwise generated. Nothing is
// written to disk: the caller must Flush. The session directory is
// re-verified so a Reset followed by Create recreates it.
func (s *Store) Create(attrs map[string]any) (*Record, error) {
	if err := s.registry.EnsureInitialized(s.dir); err != nil {
		return nil, err
	}

	rec := &Record{Data: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		if k == "id" {
			continue
		}
		rec.Data[k] = v
	}

	if id, ok := attrs["id"].(string); ok && id != "" {
		rec.ID = id
	} else {
		rec.ID = uuid.NewString()
	}
	if err := validateID(rec.ID); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("id", rec.ID).Msg("Session created")
	return rec, nil
}

// Retrieve returns the previously flushed record for id, or (nil, nil)
// when no session file exists. The file is read under an exclusive
// lock, so a retrieve concurrent with a flush of the same id sees
// either the old or the new contents, never a torn write.
func (s *Store) Retrieve(id string) (*Record, error) {
	start := time.Now()
	defer func() {
		observability.RecordRetrieve(time.Since(start))
	}()

	if err := validateID(id); err != nil {
		return nil, err
	}

	path := s.PathFor(id)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("id", id).Msg("Session not found")
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}

	if err := lockExclusive(f, s.lockTimeout); err != nil {
		f.Close()
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}

	// Close drops the advisory lock.
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: close %s: %w", ErrIO, path, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = id
	}

	s.logger.Debug().Str("id", id).Msg("Session retrieved")
	return rec, nil
}

// Flush serializes rec, id included, and writes it to PathFor(rec.ID)
// under an exclusive lock, fully replacing any prior content. The file
// is created with the store's restrictive mode and synced before
// close. Returns rec unchanged.
func (s *Store) Flush(rec *Record) (*Record, error) {
	start := time.Now()
	defer func() {
		observability.RecordFlush(time.Since(start))
	}()

	if rec == nil {
		return nil, errors.New("record cannot be nil")
	}
	if err := validateID(rec.ID); err != nil {
		return nil, err
	}
	if err := s.registry.EnsureInitialized(s.dir); err != nil {
		return nil, err
	}

	data, err := rec.encode()
	if err != nil {
		return nil, err
	}

	path := s.PathFor(rec.ID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, s.mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}

	if err := lockExclusive(f, s.lockTimeout); err != nil {
		f.Close()
		return nil, err
	}

	// Truncate only after the lock is held, so a concurrent flush
	// never clobbers bytes a lock holder is still writing.
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: truncate %s: %w", ErrIO, path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: sync %s: %w", ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: close %s: %w", ErrIO, path, err)
	}

	s.updateActiveSessions()
	s.logger.Debug().Str("id", rec.ID).Int("bytes", len(data)).Msg("Session flushed")

	return rec, nil
}

// Destroy deletes the session file for id. Destroying an absent
// session is a successful no-op.
func (s *Store) Destroy(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	path := s.PathFor(id)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: remove %s: %w", ErrIO, path, err)
	}

	s.updateActiveSessions()
	s.logger.Debug().Str("id", id).Msg("Session destroyed")

	return nil
}

// List returns the ids of all session files in the directory. An
// absent directory yields an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: read dir %s: %w", ErrIO, s.dir, err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}

	return ids, nil
}

// Info describes an existing session file.
type Info struct {
	ID      string
	Size    int64
	ModTime time.Time
}

// Info returns file metadata for id, or (nil, nil) when the session
// does not exist.
func (s *Store) Info(id string) (*Info, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	fi, err := os.Stat(s.PathFor(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, s.PathFor(id), err)
	}

	return &Info{ID: id, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Dir returns the configured session directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) updateActiveSessions() {
	ids, err := s.List()
	if err != nil {
		return
	}
	observability.SetActiveSessions(len(ids))
}
