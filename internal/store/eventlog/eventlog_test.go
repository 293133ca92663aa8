package eventlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	require.NoError(t, log.Append(ctx, KindTransition, "FLAT -> ENTRY_PENDING", map[string]any{"side": "LONG"}))
	require.NoError(t, log.Append(ctx, KindOrder, "entry filled", map[string]any{"price": 50000.0}))
	require.NoError(t, log.Append(ctx, KindTransition, "ENTRY_PENDING -> OPEN", nil))

	all, err := log.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ENTRY_PENDING -> OPEN", all[0].Message, "newest first")

	transitions, err := log.Recent(ctx, KindTransition, 10)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, "LONG", transitions[1].Fields["side"])

	orders, err := log.Recent(ctx, KindOrder, 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 50000.0, orders[0].Fields["price"])
	assert.False(t, orders[0].Timestamp.IsZero())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}
