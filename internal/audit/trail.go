package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/tobeyfinance/backoffice/internal/models"
	"github.com/tobeyfinance/backoffice/internal/store"
)

// Collection is the store collection audit entries persist into.
const Collection = "audit_logs"

// QueueKey is the Redis list downstream consumers read audit events from.
const QueueKey = "audit_events"

const bufferSize = 256

// Entry is one audit trail record.
type Entry struct {
	SchemaVersion int       `json:"schema_version"`
	EntryID       string    `json:"entry_id"`
	ActorID       string    `json:"actor_id"`
	Action        string    `json:"action"`
	TargetType    string    `json:"target_type"`
	TargetID      string    `json:"target_id"`
	Details       string    `json:"details"`
	Success       bool      `json:"success"`
	CreatedAt     time.Time `json:"created_at"`
}

// Trail records ledger actions without ever blocking the caller. Entries
// go onto a buffered channel drained by a background writer that persists
// them and, when Redis is configured, mirrors them onto a queue for
// downstream consumers. A full buffer drops the entry with a log line.
type Trail struct {
	store   *store.Store
	redis   *redis.Client
	entries chan Entry
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewTrail starts the trail's background writer. rdb may be nil; entries
// are then store-only.
func NewTrail(st *store.Store, rdb *redis.Client) *Trail {
	t := &Trail{
		store:   st,
		redis:   rdb,
		entries: make(chan Entry, bufferSize),
		done:    make(chan struct{}),
	}
	go t.writer()
	return t
}

// Record enqueues an audit entry. Fire-and-forget: the caller never learns
// whether the entry was persisted.
func (t *Trail) Record(ctx context.Context, actorID, action, targetType, targetID, details string, success bool) {
	entry := Entry{
		SchemaVersion: models.SchemaVersion,
		EntryID:       uuid.New().String(),
		ActorID:       actorID,
		Action:        action,
		TargetType:    targetType,
		TargetID:      targetID,
		Details:       details,
		Success:       success,
		CreatedAt:     time.Now().UTC(),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		log.Printf("[AUDIT] trail closed, dropping entry: %s %s %s", actorID, action, targetID)
		return
	}
	select {
	case t.entries <- entry:
	default:
		log.Printf("[AUDIT] buffer full, dropping entry: %s %s %s", actorID, action, targetID)
	}
}

// Close stops accepting entries and waits for the writer to drain. Safe to
// call more than once; entries recorded afterwards are dropped.
func (t *Trail) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.entries)
	t.mu.Unlock()
	<-t.done
}

func (t *Trail) writer() {
	defer close(t.done)
	ctx := context.Background()
	for entry := range t.entries {
		if err := t.store.Upsert(ctx, Collection, "entry_id", entry); err != nil {
			log.Printf("[AUDIT] failed to persist entry %s: %v", entry.EntryID, err)
		}
		if t.redis == nil {
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if err := t.redis.RPush(ctx, QueueKey, string(data)).Err(); err != nil {
			log.Printf("[AUDIT] failed to queue entry %s: %v", entry.EntryID, err)
		}
	}
}

// ByActor returns an actor's entries, newest first.
func (t *Trail) ByActor(ctx context.Context, actorID string) ([]Entry, error) {
	return t.scan(ctx, func(e *Entry) bool { return e.ActorID == actorID })
}

// Failures returns the entries for failed actions, newest first.
func (t *Trail) Failures(ctx context.Context) ([]Entry, error) {
	return t.scan(ctx, func(e *Entry) bool { return !e.Success })
}

// Recent returns up to limit entries, newest first.
func (t *Trail) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := t.scan(ctx, nil)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (t *Trail) scan(ctx context.Context, keep func(*Entry) bool) ([]Entry, error) {
	docs, err := t.store.List(ctx, Collection, nil)
	if err != nil {
		return nil, err
	}
	entries := []Entry{}
	for _, doc := range docs {
		var entry Entry
		if err := json.Unmarshal(doc, &entry); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		if keep == nil || keep(&entry) {
			entries = append(entries, entry)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

type actorKey struct{}

// ContextWithActor tags a request context with the acting principal.
func ContextWithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the acting principal, or "system" when the
// context carries none.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}
