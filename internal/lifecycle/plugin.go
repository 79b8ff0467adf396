// Package lifecycle bridges GORM persistence callbacks into the audit
// capture pipeline and the workflow trigger evaluator. Registering the
// plugin on a *gorm.DB is the single integration point: every create,
// update and delete flowing through that handle is observed, with no
// per-repository instrumentation.
package lifecycle

import (
	"context"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/isms-go-api/internal/audit"
	"github.com/noah-isme/isms-go-api/internal/database"
	"github.com/noah-isme/isms-go-api/internal/workflow"
)

const (
	tokenKey    = "isms:audit_token"
	changesKey  = "isms:audit_changes"
	snapshotKey = "isms:audit_snapshot"
)

// Plugin observes entity mutations on the DB handle it is registered on.
// Audit capture runs before trigger evaluation, each in its own error
// boundary: a failure in either never reaches db.Error, so instrumentation
// cannot fail the business mutation it observes.
type Plugin struct {
	capture   *audit.Capture
	evaluator *workflow.Evaluator
	logger    zerolog.Logger
}

// New constructs the lifecycle plugin. The evaluator may be nil, in which
// case only the audit trail is produced.
func New(capture *audit.Capture, evaluator *workflow.Evaluator, logger zerolog.Logger) *Plugin {
	return &Plugin{
		capture:   capture,
		evaluator: evaluator,
		logger:    logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Name implements gorm.Plugin.
func (p *Plugin) Name() string { return "isms:lifecycle" }

// Initialize implements gorm.Plugin by hooking the pre- and post-phases of
// every mutating operation.
func (p *Plugin) Initialize(db *gorm.DB) error {
	create := db.Callback().Create()
	if err := create.Before("gorm:create").Register("isms:before_create", p.beforeCreate); err != nil {
		return err
	}
	if err := create.After("gorm:create").Register("isms:after_create", p.afterCreate); err != nil {
		return err
	}

	update := db.Callback().Update()
	if err := update.Before("gorm:update").Register("isms:before_update", p.beforeUpdate); err != nil {
		return err
	}
	if err := update.After("gorm:update").Register("isms:after_update", p.afterUpdate); err != nil {
		return err
	}

	del := db.Callback().Delete()
	if err := del.Before("gorm:delete").Register("isms:before_delete", p.beforeDelete); err != nil {
		return err
	}
	if err := del.After("gorm:delete").Register("isms:after_delete", p.afterDelete); err != nil {
		return err
	}

	return nil
}

func (p *Plugin) beforeCreate(db *gorm.DB) {
	defer p.recoverPanic(db, "before_create")

	entity, ok := recordableFrom(db)
	if !ok || !audit.IsAuditable(entity.AuditKind()) {
		return
	}

	token := audit.NewToken()
	db.InstanceSet(tokenKey, token)
	p.capture.BeginCreate(token, entity)
}

func (p *Plugin) afterCreate(db *gorm.DB) {
	defer p.recoverPanic(db, "after_create")

	entity, ok := recordableFrom(db)
	if !ok {
		return
	}
	token, ok := p.token(db)
	if !ok {
		return
	}
	if db.Error != nil {
		p.capture.Discard(token)
		return
	}

	ctx := txContext(db)
	p.capture.CommitCreate(ctx, token, entity)
	if p.evaluator != nil {
		p.evaluator.Evaluate(ctx, entity, true, nil)
	}
}

// beforeUpdate re-reads the persisted row and diffs it against the incoming
// state. The diff is computed here, before the update statement overwrites
// the row; an empty diff leaves no pending state, so the post-phase emits
// nothing.
func (p *Plugin) beforeUpdate(db *gorm.DB) {
	defer p.recoverPanic(db, "before_update")

	entity, ok := recordableFrom(db)
	if !ok || !audit.IsAuditable(entity.AuditKind()) || entity.AuditID() == 0 {
		return
	}

	previous, err := p.loadPrevious(db, entity)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("entity_type", string(entity.AuditKind())).
			Uint("entity_id", entity.AuditID()).
			Msg("could not load prior state, skipping audit for this update")
		return
	}

	changes := audit.Diff(entity.AuditKind(), previous, entity.AuditSnapshot())
	if len(changes) == 0 {
		return
	}

	token := audit.NewToken()
	db.InstanceSet(tokenKey, token)
	db.InstanceSet(changesKey, changes)
	p.capture.BeginUpdate(token, entity, changes)
}

func (p *Plugin) afterUpdate(db *gorm.DB) {
	defer p.recoverPanic(db, "after_update")

	entity, ok := recordableFrom(db)
	if !ok {
		return
	}
	token, ok := p.token(db)
	if !ok {
		return
	}
	if db.Error != nil {
		p.capture.Discard(token)
		return
	}

	ctx := txContext(db)
	p.capture.CommitUpdate(ctx, token, entity)

	if p.evaluator == nil {
		return
	}
	raw, ok := db.InstanceGet(changesKey)
	if !ok {
		return
	}
	changes, ok := raw.(audit.ChangeSet)
	if !ok {
		return
	}
	p.evaluator.Evaluate(ctx, entity, false, changes)
}

// beforeDelete snapshots the row while it still exists. Deletes need no
// correlation token for identity, but the values must be read pre-statement.
func (p *Plugin) beforeDelete(db *gorm.DB) {
	defer p.recoverPanic(db, "before_delete")

	entity, ok := recordableFrom(db)
	if !ok || !audit.IsAuditable(entity.AuditKind()) || entity.AuditID() == 0 {
		return
	}

	snapshot, err := p.loadPrevious(db, entity)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("entity_type", string(entity.AuditKind())).
			Uint("entity_id", entity.AuditID()).
			Msg("could not load prior state, skipping audit for this delete")
		return
	}

	db.InstanceSet(snapshotKey, snapshot)
}

func (p *Plugin) afterDelete(db *gorm.DB) {
	defer p.recoverPanic(db, "after_delete")

	entity, ok := recordableFrom(db)
	if !ok || db.Error != nil {
		return
	}

	raw, ok := db.InstanceGet(snapshotKey)
	if !ok {
		return
	}
	snapshot, ok := raw.(map[string]any)
	if !ok {
		return
	}

	p.capture.RecordDelete(txContext(db), entity, snapshot)
}

// loadPrevious fetches the persisted state of the entity through a clean
// session on the same connection, bypassing this plugin's own mutation
// callbacks.
func (p *Plugin) loadPrevious(db *gorm.DB, entity audit.Recordable) (map[string]any, error) {
	entityType := reflect.TypeOf(entity)
	if entityType.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("entity %T is not addressable", entity)
	}

	fresh := reflect.New(entityType.Elem()).Interface()
	session := db.Session(&gorm.Session{NewDB: true, SkipHooks: true})
	if err := session.First(fresh, entity.AuditID()).Error; err != nil {
		return nil, err
	}

	prior, ok := fresh.(audit.Recordable)
	if !ok {
		return nil, fmt.Errorf("entity %T lost auditability after reload", fresh)
	}
	return prior.AuditSnapshot(), nil
}

// txContext threads the statement's connection into the context handed to
// the capture pipeline and the trigger evaluator. When the mutation runs
// inside a transaction the connection is that transaction, so audit entries
// and triggered workflow rows commit and roll back with the mutation; outside
// a transaction it is the plain connection and nothing changes.
func txContext(db *gorm.DB) context.Context {
	handle := db.Session(&gorm.Session{NewDB: true, SkipHooks: true})
	return database.WithTx(db.Statement.Context, handle)
}

func (p *Plugin) token(db *gorm.DB) (string, bool) {
	raw, ok := db.InstanceGet(tokenKey)
	if !ok {
		return "", false
	}
	token, ok := raw.(string)
	return token, ok
}

func (p *Plugin) recoverPanic(db *gorm.DB, phase string) {
	if r := recover(); r != nil {
		p.logger.Error().
			Interface("panic", r).
			Str("phase", phase).
			Str("table", db.Statement.Table).
			Msg("lifecycle callback panicked")
	}
}

func recordableFrom(db *gorm.DB) (audit.Recordable, bool) {
	if db.Statement == nil {
		return nil, false
	}
	if entity, ok := db.Statement.Dest.(audit.Recordable); ok {
		return entity, true
	}
	if entity, ok := db.Statement.Model.(audit.Recordable); ok {
		return entity, true
	}
	return nil, false
}
