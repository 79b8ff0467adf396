package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Action classifies an audit record.
type Action string

// Audit actions.
const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Entry is one immutable audit record ready for persistence.
type Entry struct {
	Kind          Kind
	EntityID      uint
	Action        Action
	Actor         Actor
	OldValues     map[string]any
	NewValues     map[string]any
	ChangedFields []string
	OccurredAt    time.Time
}

// Sink accepts finished audit entries. The sink write happens inside the
// business transaction, so a rolled-back mutation also rolls back its trail.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, entry Entry) error

// Write implements Sink.
func (f SinkFunc) Write(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}

type pendingMutation struct {
	action    Action
	kind      Kind
	newValues map[string]any
	changes   ChangeSet
}

// Capture correlates the pre- and post-phases of a single entity mutation and
// emits exactly one audit entry per create, update and delete.
//
// Identity is unknown until the persistence operation completes, while value
// snapshots must be taken before the in-memory entity mutates further, so the
// two phases are bridged by a correlation token issued at pre-phase time and
// cleared on emission. Tokens are scoped to one unit of work; the map only
// needs a mutex because one Capture instance serves concurrent requests.
type Capture struct {
	mu      sync.Mutex
	pending map[string]pendingMutation
	sink    Sink
	logger  zerolog.Logger
	now     func() time.Time
}

// NewCapture constructs the audit capture state machine.
func NewCapture(sink Sink, logger zerolog.Logger) *Capture {
	return &Capture{
		pending: make(map[string]pendingMutation),
		sink:    sink,
		logger:  logger.With().Str("component", "audit_capture").Logger(),
		now:     time.Now,
	}
}

// NewToken issues a fresh correlation token for one mutation pass.
func NewToken() string {
	return uuid.NewString()
}

// BeginCreate snapshots a new entity before it is inserted.
func (c *Capture) BeginCreate(token string, entity Recordable) {
	if !IsAuditable(entity.AuditKind()) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[token] = pendingMutation{
		action:    ActionCreated,
		kind:      entity.AuditKind(),
		newValues: NormalizeMap(entity.AuditSnapshot()),
	}
}

// CommitCreate emits the created record once the insert has assigned identity.
// Without a matching pre-phase state this is a no-op.
func (c *Capture) CommitCreate(ctx context.Context, token string, entity Recordable) {
	c.commit(ctx, token, ActionCreated, entity)
}

// BeginUpdate stores the computed change set before the update statement
// runs. An empty change set stores nothing, so the matching post-phase event
// emits nothing: updates with zero observed changes leave no record.
func (c *Capture) BeginUpdate(token string, entity Recordable, changes ChangeSet) {
	if !IsAuditable(entity.AuditKind()) || len(changes) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[token] = pendingMutation{
		action:  ActionUpdated,
		kind:    entity.AuditKind(),
		changes: changes,
	}
}

// CommitUpdate emits the updated record after the update statement ran.
func (c *Capture) CommitUpdate(ctx context.Context, token string, entity Recordable) {
	c.commit(ctx, token, ActionUpdated, entity)
}

// RecordDelete emits a deleted record from a snapshot captured before the
// row was removed. Deletes need no pre/post correlation: identity is already
// known and the entity will not mutate again.
func (c *Capture) RecordDelete(ctx context.Context, entity Recordable, snapshot map[string]any) {
	if !IsAuditable(entity.AuditKind()) {
		return
	}

	c.write(ctx, Entry{
		Kind:       entity.AuditKind(),
		EntityID:   entity.AuditID(),
		Action:     ActionDeleted,
		Actor:      ActorFromContext(ctx),
		OldValues:  NormalizeMap(snapshot),
		OccurredAt: c.now().UTC(),
	})
}

// Discard drops any pending state for the token, for callers that abort a
// mutation between phases.
func (c *Capture) Discard(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, token)
}

func (c *Capture) commit(ctx context.Context, token string, action Action, entity Recordable) {
	c.mu.Lock()
	state, ok := c.pending[token]
	if ok {
		delete(c.pending, token)
	}
	c.mu.Unlock()

	if !ok || state.action != action {
		return
	}

	entry := Entry{
		Kind:       state.kind,
		EntityID:   entity.AuditID(),
		Action:     action,
		Actor:      ActorFromContext(ctx),
		OccurredAt: c.now().UTC(),
	}

	switch action {
	case ActionCreated:
		entry.NewValues = state.newValues
	case ActionUpdated:
		entry.OldValues = make(map[string]any, len(state.changes))
		entry.NewValues = make(map[string]any, len(state.changes))
		for field, change := range state.changes {
			entry.OldValues[field] = change.Old
			entry.NewValues[field] = change.New
		}
		entry.ChangedFields = state.changes.Fields()
	}

	c.write(ctx, entry)
}

// write persists one entry. Emission failures are logged and absorbed: audit
// instrumentation must never block the business mutation it observes, and one
// entity's failure must not affect another's emission.
func (c *Capture) write(ctx context.Context, entry Entry) {
	if err := c.sink.Write(ctx, entry); err != nil {
		c.logger.Error().
			Err(err).
			Str("entity_type", string(entry.Kind)).
			Uint("entity_id", entry.EntityID).
			Str("action", string(entry.Action)).
			Msg("failed to persist audit entry")
	}
}
