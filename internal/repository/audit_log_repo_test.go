package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/isms-go-api/internal/models"
)

func setupRepoDB(t *testing.T, tables ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(tables...))
	return db
}

func seedAuditEntries(t *testing.T, repo AuditLogRepository) {
	t.Helper()

	actorOne := uint(1)
	actorTwo := uint(2)
	entityFive := uint(5)

	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.AuditLogEntry{
		{EntityType: "Incident", EntityID: &entityFive, Action: "created", ActorID: &actorOne, OccurredAt: base},
		{EntityType: "Incident", EntityID: &entityFive, Action: "updated", ActorID: &actorTwo, OccurredAt: base.Add(time.Hour)},
		{EntityType: "Risk", Action: "created", ActorID: &actorOne, OccurredAt: base.Add(2 * time.Hour)},
		{EntityType: "Risk", Action: "deleted", ActorID: &actorOne, OccurredAt: base.Add(3 * time.Hour)},
	}
	for i := range entries {
		require.NoError(t, repo.Create(context.Background(), &entries[i]))
	}
}

func TestAuditLogListFilters(t *testing.T) {
	db := setupRepoDB(t, &models.AuditLogEntry{})
	repo := NewAuditLogRepository(db)
	seedAuditEntries(t, repo)

	entries, total, err := repo.List(context.Background(), AuditLogFilter{EntityType: "Incident"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, entries, 2)

	actorTwo := uint(2)
	entries, total, err = repo.List(context.Background(), AuditLogFilter{ActorID: &actorTwo})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "updated", entries[0].Action)

	entries, _, err = repo.List(context.Background(), AuditLogFilter{Action: "created"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	since := time.Date(2026, 7, 1, 14, 0, 0, 0, time.UTC)
	entries, total, err = repo.List(context.Background(), AuditLogFilter{Since: &since})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	for _, entry := range entries {
		require.Equal(t, "Risk", entry.EntityType)
	}
}

func TestAuditLogListOrdersNewestFirstAndPaginates(t *testing.T) {
	db := setupRepoDB(t, &models.AuditLogEntry{})
	repo := NewAuditLogRepository(db)
	seedAuditEntries(t, repo)

	page, total, err := repo.List(context.Background(), AuditLogFilter{Page: 1, PageSize: 3})
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
	require.Len(t, page, 3)
	require.Equal(t, "deleted", page[0].Action)

	rest, total, err := repo.List(context.Background(), AuditLogFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
	require.Len(t, rest, 1)
	require.Equal(t, "created", rest[0].Action)
	require.Equal(t, "Incident", rest[0].EntityType)
}

func TestAuditLogDeleteOlderThan(t *testing.T) {
	db := setupRepoDB(t, &models.AuditLogEntry{})
	repo := NewAuditLogRepository(db)
	seedAuditEntries(t, repo)

	cutoff := time.Date(2026, 7, 1, 14, 0, 0, 0, time.UTC)
	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	_, total, err := repo.List(context.Background(), AuditLogFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
}
