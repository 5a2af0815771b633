package jsonstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/filelock"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type busyLocker struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (b *busyLocker) Lock(*os.File, bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.failures > 0 {
		b.failures--
		return filelock.ErrLocked
	}
	return nil
}

func (b *busyLocker) Unlock(*os.File) error { return nil }
func (b *busyLocker) Name() string          { return "busy" }

type gateStub bool

func (g gateStub) ReadOnly(context.Context) bool { return bool(g) }

func newStore(t *testing.T, l filelock.Locker, opts ...Option) *Store {
	t.Helper()
	s := New(t.TempDir(), l, logging.Discard(), opts...)
	s.sleep = func(time.Duration) {}
	return s
}

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_WriteRead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, filelock.None{})

	require.NoError(t, s.Write(ctx, DocUsers, doc{Name: "a<b>", Count: 2}))
	assert.True(t, s.Exists(ctx, DocUsers))

	var got doc
	require.True(t, s.Read(ctx, DocUsers, &got))
	assert.Equal(t, doc{Name: "a<b>", Count: 2}, got)

	raw, err := os.ReadFile(filepath.Join(s.Root(), "users", "users.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name": "a<b>"`)

	_, err = os.Stat(filepath.Join(s.Root(), "users", "users.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file must not survive a write")
}

func TestStore_ReadMissing(t *testing.T) {
	s := newStore(t, filelock.None{})
	var got doc
	assert.False(t, s.Read(context.Background(), DocQuota, &got))
	assert.False(t, s.Exists(context.Background(), DocQuota))
}

func TestStore_ReadCorruptMovesAside(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, filelock.None{})

	path := filepath.Join(s.Root(), DocUsage)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	var got doc
	assert.False(t, s.Read(ctx, DocUsage, &got))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	backup, err := os.ReadFile(path + ".backup")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}

func TestStore_RetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	l := &busyLocker{failures: 2}
	s := New(t.TempDir(), l, logging.Discard())
	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, s.Write(ctx, DocQuota, doc{Name: "x"}))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, slept)
}

func TestStore_BackoffDoubles(t *testing.T) {
	ctx := context.Background()
	l := &busyLocker{failures: 3}
	s := New(t.TempDir(), l, logging.Discard(), WithRetry(4, 10*time.Millisecond))
	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, s.Write(ctx, DocQuota, doc{Name: "x"}))
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, slept)
	assert.Equal(t, 4, l.calls)
}

func TestMarshal_MatchesFileEncoding(t *testing.T) {
	data, err := Marshal(doc{Name: "a<b>&c", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a<b>&c","count":2}`, string(data))

	indented, err := encode(doc{Name: "a<b>&c", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"name\": \"a<b>&c\",\n  \"count\": 2\n}\n", string(indented))
}

func TestStore_GivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	l := &busyLocker{failures: 10}
	s := New(t.TempDir(), l, logging.Discard())
	s.sleep = func(time.Duration) {}

	err := s.Write(ctx, DocQuota, doc{Name: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))
	assert.Equal(t, 3, l.calls)
	assert.False(t, s.Exists(ctx, DocQuota))
}

func TestStore_ReadOnlyGate(t *testing.T) {
	s := newStore(t, filelock.None{}, WithGate(gateStub(true)))
	err := s.Write(context.Background(), DocUsers, doc{})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestStore_RejectsEscapingNames(t *testing.T) {
	s := newStore(t, filelock.None{})
	err := s.Write(context.Background(), "../outside.json", doc{})
	assert.ErrorIs(t, err, ErrBadName)
}

func TestStore_ConcurrentWritersNeverCorrupt(t *testing.T) {
	ctx := context.Background()
	l, err := filelock.New(filelock.ModeAuto)
	require.NoError(t, err)
	s := New(t.TempDir(), l, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Write(ctx, DocSessions, doc{Name: fmt.Sprintf("w%d", i), Count: i}))
		}(i)
	}
	wg.Wait()

	var got doc
	require.True(t, s.Read(ctx, DocSessions, &got))
	assert.Equal(t, fmt.Sprintf("w%d", got.Count), got.Name)
}
