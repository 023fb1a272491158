package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func setupTestStore(t *testing.T) (*Store, string) {
	dir := filepath.Join(t.TempDir(), "sessions")
	s, err := New(Config{Dir: dir})
	require.NoError(t, err)
	return s, dir
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_CreatesDir(t *testing.T) {
	_, dir := setupTestStore(t)

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestStore_PathFor(t *testing.T) {
	s, dir := setupTestStore(t)

	assert.Equal(t, filepath.Join(dir, "abc.yml"), s.PathFor("abc"))
}

func TestStore_Create(t *testing.T) {
	s, _ := setupTestStore(t)

	rec, err := s.Create(map[string]any{"id": "abc", "user": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.ID)
	assert.Equal(t, map[string]any{"user": "alice"}, rec.Data)

	// Create is in-memory only
	_, err = os.Stat(s.PathFor("abc"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_CreateGeneratesID(t *testing.T) {
	s, _ := setupTestStore(t)

	rec, err := s.Create(map[string]any{"user": "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	other, err := s.Create(map[string]any{"user": "bob"})
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, other.ID)
}

func TestStore_ValidateID(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		shouldErr bool
	}{
		{"valid id", "sess-01", false},
		{"empty id", "", true},
		{"path traversal", "../etc/passwd", true},
		{"forward slash", "a/b", true},
		{"backslash", "a\\b", true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateID(tt.id)
			if tt.shouldErr {
				assert.ErrorIs(t, err, ErrInvalidID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStore_FlushRetrieveRoundTrip(t *testing.T) {
	s, _ := setupTestStore(t)

	rec, err := s.Create(map[string]any{
		"id":    "abc",
		"user":  "alice",
		"count": 3,
		"tags":  []any{"a", "b"},
		"nested": map[string]any{
			"theme": "dark",
		},
	})
	require.NoError(t, err)

	flushed, err := s.Flush(rec)
	require.NoError(t, err)
	assert.Same(t, rec, flushed)

	got, err := s.Retrieve("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Data, got.Data)
}

func TestStore_RetrieveNotFound(t *testing.T) {
	s, _ := setupTestStore(t)

	rec, err := s.Retrieve("missing")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_FlushOverwrites(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.Flush(&Record{ID: "abc", Data: map[string]any{"user": "alice", "extra": strings.Repeat("x", 2048)}})
	require.NoError(t, err)

	_, err = s.Flush(&Record{ID: "abc", Data: map[string]any{"user": "bob"}})
	require.NoError(t, err)

	got, err := s.Retrieve("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, map[string]any{"user": "bob"}, got.Data)
}

func TestStore_FlushFileMode(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.Flush(&Record{ID: "abc", Data: map[string]any{"user": "alice"}})
	require.NoError(t, err)

	fi, err := os.Stat(s.PathFor("abc"))
	require.NoError(t, err)
	assert.Equal(t, DefaultFileMode, fi.Mode().Perm())
}

func TestStore_DestroyIdempotent(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.Flush(&Record{ID: "abc", Data: map[string]any{"user": "alice"}})
	require.NoError(t, err)

	assert.NoError(t, s.Destroy("abc"))
	assert.NoError(t, s.Destroy("abc"))

	rec, err := s.Retrieve("abc")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_RetrieveCorruptFile(t *testing.T) {
	s, _ := setupTestStore(t)

	require.NoError(t, os.WriteFile(s.PathFor("bad"), []byte("{invalid: ["), 0600))

	_, err := s.Retrieve("bad")
	assert.ErrorIs(t, err, ErrDeserialize)

	// The file is left untouched
	data, err := os.ReadFile(s.PathFor("bad"))
	require.NoError(t, err)
	assert.Equal(t, "{invalid: [", string(data))
}

func TestStore_LockTimeout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	s, err := New(Config{Dir: dir, LockTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = s.Flush(&Record{ID: "busy", Data: map[string]any{"user": "alice"}})
	require.NoError(t, err)

	f, err := os.Open(s.PathFor("busy"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, unix.Flock(int(f.Fd()), unix.LOCK_EX))

	_, err = s.Retrieve("busy")
	assert.ErrorIs(t, err, ErrLockTimeout)

	// Once the lock is released the retrieve succeeds
	require.NoError(t, unix.Flock(int(f.Fd()), unix.LOCK_UN))
	rec, err := s.Retrieve("busy")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.Data["user"])
}

func TestStore_ConcurrentFlushSameID(t *testing.T) {
	s, _ := setupTestStore(t)

	const writes = 25
	payload := strings.Repeat("x", 1024)

	var wg sync.WaitGroup
	for worker := 0; worker < 2; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for seq := 0; seq < writes; seq++ {
				_, err := s.Flush(&Record{ID: "shared", Data: map[string]any{
					"worker":  worker,
					"seq":     seq,
					"payload": payload,
				}})
				assert.NoError(t, err)
			}
		}(worker)
	}
	wg.Wait()

	// Last writer wins; either way the file parses cleanly
	rec, err := s.Retrieve("shared")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, payload, rec.Data["payload"])
	assert.Contains(t, []any{0, 1}, rec.Data["worker"])
}

func TestStore_List(t *testing.T) {
	s, _ := setupTestStore(t)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = s.Flush(&Record{ID: "a", Data: map[string]any{"n": 1}})
	require.NoError(t, err)
	_, err = s.Flush(&Record{ID: "b", Data: map[string]any{"n": 2}})
	require.NoError(t, err)

	ids, err = s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestStore_Info(t *testing.T) {
	s, _ := setupTestStore(t)

	info, err := s.Info("abc")
	require.NoError(t, err)
	assert.Nil(t, info)

	_, err = s.Flush(&Record{ID: "abc", Data: map[string]any{"user": "alice"}})
	require.NoError(t, err)

	info, err = s.Info("abc")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "abc", info.ID)
	assert.Greater(t, info.Size, int64(0))
	assert.WithinDuration(t, time.Now(), info.ModTime, time.Minute)
}

func TestStore_ResetRecreatesRemovedDir(t *testing.T) {
	registry := NewDirRegistry()
	dir := filepath.Join(t.TempDir(), "sessions")
	s, err := New(Config{Dir: dir}, WithRegistry(registry))
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	registry.Reset()

	rec, err := s.Create(map[string]any{"id": "abc", "user": "alice"})
	require.NoError(t, err)
	_, err = s.Flush(rec)
	require.NoError(t, err)

	got, err := s.Retrieve("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Data["user"])
}

// Full lifecycle: create, flush, retrieve, destroy.
func TestStore_Lifecycle(t *testing.T) {
	s, dir := setupTestStore(t)

	rec, err := s.Create(map[string]any{"id": "abc", "user": "alice"})
	require.NoError(t, err)

	_, err = s.Flush(rec)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "abc.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "id: abc")
	assert.Contains(t, string(data), "user: alice")

	got, err := s.Retrieve("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, map[string]any{"user": "alice"}, got.Data)

	require.NoError(t, s.Destroy("abc"))

	_, err = os.Stat(filepath.Join(dir, "abc.yml"))
	assert.True(t, os.IsNotExist(err))

	got, err = s.Retrieve("abc")
	assert.NoError(t, err)
	assert.Nil(t, got)
}
