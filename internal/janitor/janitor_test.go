package janitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/ayra/internal/metrics"
	"github.com/harun/ayra/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "janitor.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSweepPrunesOldDeliveries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-40 * 24 * time.Hour)
	_, err := st.MarkSeen(ctx, "old-delivery", old)
	require.NoError(t, err)
	_, err = st.MarkSeen(ctx, "fresh-delivery", time.Now())
	require.NoError(t, err)

	j := New(st, metrics.NewMetrics(), Options{MaxAgeDays: 30}, zerolog.Nop())
	j.sweep()

	seen, err := st.AlreadySeen(ctx, "old-delivery")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = st.AlreadySeen(ctx, "fresh-delivery")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	j := New(newTestStore(t), nil, Options{Schedule: "not a schedule"}, zerolog.Nop())
	assert.Error(t, j.Start())
}

func TestStartAndStop(t *testing.T) {
	j := New(newTestStore(t), nil, Options{Schedule: "@daily"}, zerolog.Nop())
	require.NoError(t, j.Start())
	j.Stop()
}
