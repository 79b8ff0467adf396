package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	entries []Entry
	err     error
}

func (s *recordingSink) Write(_ context.Context, entry Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

type capturedIncident struct {
	id       uint
	severity string
	secret   string
}

func (c *capturedIncident) AuditKind() Kind { return KindIncident }
func (c *capturedIncident) AuditID() uint   { return c.id }
func (c *capturedIncident) AuditSnapshot() map[string]any {
	return map[string]any{
		"severity":     c.severity,
		"access_token": c.secret,
	}
}

func newTestCapture(sink Sink) *Capture {
	return NewCapture(sink, zerolog.Nop())
}

func TestCaptureCreateEmitsSingleEntry(t *testing.T) {
	sink := &recordingSink{}
	capture := newTestCapture(sink)

	entity := &capturedIncident{severity: "high", secret: "abc"}
	token := NewToken()
	capture.BeginCreate(token, entity)

	// Insert assigns identity between the two phases.
	entity.id = 7
	capture.CommitCreate(context.Background(), token, entity)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	require.Equal(t, KindIncident, entry.Kind)
	require.Equal(t, uint(7), entry.EntityID)
	require.Equal(t, ActionCreated, entry.Action)
	require.Equal(t, "high", entry.NewValues["severity"])
	require.Equal(t, "***", entry.NewValues["access_token"])
	require.Nil(t, entry.OldValues)
}

func TestCaptureCommitWithoutBeginIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	capture := newTestCapture(sink)

	capture.CommitCreate(context.Background(), NewToken(), &capturedIncident{id: 1})
	capture.CommitUpdate(context.Background(), NewToken(), &capturedIncident{id: 1})

	require.Empty(t, sink.entries)
}

func TestCaptureUpdateEmitsChangedFieldsOnly(t *testing.T) {
	sink := &recordingSink{}
	capture := newTestCapture(sink)

	entity := &capturedIncident{id: 3, severity: "critical"}
	changes := ChangeSet{"severity": {Old: "low", New: "critical"}}

	token := NewToken()
	capture.BeginUpdate(token, entity, changes)
	capture.CommitUpdate(context.Background(), token, entity)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	require.Equal(t, ActionUpdated, entry.Action)
	require.Equal(t, []string{"severity"}, entry.ChangedFields)
	require.Equal(t, map[string]any{"severity": "low"}, entry.OldValues)
	require.Equal(t, map[string]any{"severity": "critical"}, entry.NewValues)
}

func TestCaptureUpdateWithEmptyChangeSetEmitsNothing(t *testing.T) {
	sink := &recordingSink{}
	capture := newTestCapture(sink)

	entity := &capturedIncident{id: 3}
	token := NewToken()
	capture.BeginUpdate(token, entity, ChangeSet{})
	capture.CommitUpdate(context.Background(), token, entity)

	require.Empty(t, sink.entries)
}

func TestCaptureDeleteEmitsOldValues(t *testing.T) {
	sink := &recordingSink{}
	capture := newTestCapture(sink)

	entity := &capturedIncident{id: 9, severity: "medium"}
	capture.RecordDelete(context.Background(), entity, entity.AuditSnapshot())

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	require.Equal(t, ActionDeleted, entry.Action)
	require.Equal(t, "medium", entry.OldValues["severity"])
	require.Nil(t, entry.NewValues)
}

func TestCaptureDiscardDropsPendingState(t *testing.T) {
	sink := &recordingSink{}
	capture := newTestCapture(sink)

	entity := &capturedIncident{severity: "low"}
	token := NewToken()
	capture.BeginCreate(token, entity)
	capture.Discard(token)

	entity.id = 4
	capture.CommitCreate(context.Background(), token, entity)
	require.Empty(t, sink.entries)
}

func TestCaptureAbsorbsSinkFailures(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	capture := newTestCapture(sink)

	entity := &capturedIncident{id: 2, severity: "low"}
	token := NewToken()
	capture.BeginCreate(token, entity)

	require.NotPanics(t, func() {
		capture.CommitCreate(context.Background(), token, entity)
	})
}

func TestCaptureAttachesActorFromContext(t *testing.T) {
	sink := &recordingSink{}
	capture := newTestCapture(sink)

	actorID := uint(12)
	ctx := WithActor(context.Background(), Actor{ID: &actorID, ClientIP: "10.0.0.1", UserAgent: "curl/8"})

	entity := &capturedIncident{severity: "low"}
	token := NewToken()
	capture.BeginCreate(token, entity)
	entity.id = 5
	capture.CommitCreate(ctx, token, entity)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	require.NotNil(t, entry.Actor.ID)
	require.Equal(t, uint(12), *entry.Actor.ID)
	require.Equal(t, "10.0.0.1", entry.Actor.ClientIP)
	require.False(t, entry.OccurredAt.IsZero())
	require.WithinDuration(t, time.Now().UTC(), entry.OccurredAt, time.Minute)
}

func TestCaptureSkipsNonAuditableKinds(t *testing.T) {
	sink := &recordingSink{}
	capture := newTestCapture(sink)

	entity := stubEntity{id: 1, kind: Kind("AuditLogEntry")}
	token := NewToken()
	capture.BeginCreate(token, entity)
	capture.CommitCreate(context.Background(), token, entity)

	require.Empty(t, sink.entries)
}
