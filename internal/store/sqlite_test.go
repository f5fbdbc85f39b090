package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ayra.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissingSession(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.Get(context.Background(), "31600000001")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestUpsertCreatesSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Upsert(ctx, "31600000001", "thread_abc", "", now))

	sess, err := s.Get(ctx, "31600000001")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "thread_abc", sess.ConversationID)
	assert.Empty(t, sess.Language)
}

func TestUpsertPreservesExistingFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Existing row: handle set, language unset
	require.NoError(t, s.Upsert(ctx, "U1", "abc", "", time.Now()))

	// Partial upsert establishing only the language must not erase the handle
	require.NoError(t, s.Upsert(ctx, "U1", "", "en", time.Now()))

	sess, err := s.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "abc", sess.ConversationID)
	assert.Equal(t, "en", sess.Language)
}

func TestUpsertDoesNotOverwriteHandle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "U1", "first", "", time.Now()))

	// A racing second create must not displace the first-set handle
	require.NoError(t, s.Upsert(ctx, "U1", "second", "", time.Now()))

	sess, err := s.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "first", sess.ConversationID)
}

func TestUpsertDoesNotDowngradeLanguage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "U1", "abc", "nl", time.Now()))

	// Ordinary message flow upserts without a language
	require.NoError(t, s.Upsert(ctx, "U1", "abc", "", time.Now()))

	sess, err := s.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "nl", sess.Language)

	// And a message-flow language never replaces an established one
	require.NoError(t, s.Upsert(ctx, "U1", "abc", "de", time.Now()))
	sess, err = s.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "nl", sess.Language)
}

func TestSetLanguageOverrides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "U1", "abc", "en", time.Now()))
	require.NoError(t, s.SetLanguage(ctx, "U1", "nl"))

	sess, err := s.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "nl", sess.Language)
}

func TestSetLanguageMissingSessionIsNoop(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetLanguage(context.Background(), "ghost", "en"))

	sess, err := s.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestMarkSeenIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seen, err := s.AlreadySeen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.False(t, seen)

	fresh, err := s.MarkSeen(ctx, "wamid.1", time.Now())
	require.NoError(t, err)
	assert.True(t, fresh)

	// Duplicate insert is tolerated and reported as not-new
	fresh, err = s.MarkSeen(ctx, "wamid.1", time.Now())
	require.NoError(t, err)
	assert.False(t, fresh)

	seen, err = s.AlreadySeen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMarkSeenConcurrentDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	admitted := make(chan bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := s.MarkSeen(ctx, "wamid.race", time.Now())
			if err == nil {
				admitted <- fresh
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for fresh := range admitted {
		if fresh {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one concurrent insert wins")
}

func TestPruneDeliveries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	_, err := s.MarkSeen(ctx, "wamid.old", old)
	require.NoError(t, err)
	_, err = s.MarkSeen(ctx, "wamid.new", recent)
	require.NoError(t, err)

	removed, err := s.PruneDeliveries(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	seen, err := s.AlreadySeen(ctx, "wamid.old")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.AlreadySeen(ctx, "wamid.new")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestUpsertTouchesUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, s.Upsert(ctx, "U1", "abc", "", first))
	require.NoError(t, s.Upsert(ctx, "U1", "", "", second))

	sess, err := s.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, second, sess.UpdatedAt.UTC())
}
