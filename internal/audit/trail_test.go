package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/go-redis/redismock/v8"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/tobeyfinance/backoffice/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "audit_test.db"))
	assert.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	assert.NoError(t, st.Initialize(context.Background(), Collection))
	return st
}

func TestTrail_RecordAndDrain(t *testing.T) {
	st := newTestStore(t)
	trail := NewTrail(st, nil)
	ctx := context.Background()

	trail.Record(ctx, "teller-1", "deposit", "account", "acct-1", "amount 500", true)
	trail.Record(ctx, "teller-1", "withdraw", "account", "acct-1", "insufficient funds", false)
	trail.Record(ctx, "teller-2", "close_account", "account", "acct-2", "", true)

	// Close waits for the writer to drain, so reads below see everything.
	trail.Close()

	t.Run("entries are persisted", func(t *testing.T) {
		entries, err := trail.Recent(ctx, 0)
		assert.NoError(t, err)
		assert.Len(t, entries, 3)
		for _, e := range entries {
			assert.NotEmpty(t, e.EntryID)
			assert.False(t, e.CreatedAt.IsZero())
		}
	})

	t.Run("by actor", func(t *testing.T) {
		entries, err := trail.ByActor(ctx, "teller-1")
		assert.NoError(t, err)
		assert.Len(t, entries, 2)

		entries, err = trail.ByActor(ctx, "nobody")
		assert.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("failures only", func(t *testing.T) {
		entries, err := trail.Failures(ctx)
		assert.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, "withdraw", entries[0].Action)
	})

	t.Run("recent respects the limit", func(t *testing.T) {
		entries, err := trail.Recent(ctx, 2)
		assert.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestTrail_QueuesToRedis(t *testing.T) {
	st := newTestStore(t)
	rdb, mock := redismock.NewClientMock()
	mock.Regexp().ExpectRPush(QueueKey, `.*deposit.*`).SetVal(1)

	trail := NewTrail(st, rdb)
	trail.Record(context.Background(), "teller-1", "deposit", "account", "acct-1", "amount 500", true)
	trail.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrail_RecordAfterClose(t *testing.T) {
	st := newTestStore(t)
	trail := NewTrail(st, nil)
	ctx := context.Background()

	trail.Record(ctx, "teller-1", "deposit", "account", "acct-1", "", true)
	trail.Close()

	// Late entries are dropped, never a panic on the closed channel.
	assert.NotPanics(t, func() {
		trail.Record(ctx, "teller-1", "withdraw", "account", "acct-1", "", true)
	})
	assert.NotPanics(t, trail.Close)

	entries, err := trail.Recent(ctx, 0)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "deposit", entries[0].Action)
}

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "system", ActorFromContext(ctx))

	ctx = ContextWithActor(ctx, "teller-9")
	assert.Equal(t, "teller-9", ActorFromContext(ctx))

	assert.Equal(t, "system", ActorFromContext(ContextWithActor(context.Background(), "")))
}
