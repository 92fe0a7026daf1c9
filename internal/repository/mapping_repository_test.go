package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/relaycrm/sync-api/internal/models"
)

func TestMappingUpsert_Success(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewMappingRepository(db)

	localID := "c1"
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO object_mappings`).
		WithArgs("org-1", models.ObjectContact, &localID, "r1", nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "local_id", "local_key", "last_synced_at", "last_seen_remote_modified_at"}).
			AddRow(int64(7), "c1", nil, now, nil))

	m, err := repo.Upsert(context.Background(), models.ObjectMapping{
		OrgID:      "org-1",
		ObjectType: models.ObjectContact,
		LocalID:    &localID,
		RemoteID:   "r1",
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if m.ID != 7 {
		t.Errorf("got id %d, want 7", m.ID)
	}
	if m.LocalID == nil || *m.LocalID != "c1" {
		t.Errorf("local_id not returned: %+v", m)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMappingGetByRemoteID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewMappingRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM object_mappings`).
		WithArgs("org-1", models.ObjectDeal, "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "object_type", "local_id", "remote_id", "local_key", "last_synced_at", "last_seen_remote_modified_at"}))

	_, err := repo.GetByRemoteID(context.Background(), "org-1", models.ObjectDeal, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMappingGetByLocalID_Success(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewMappingRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM object_mappings`).
		WithArgs("org-1", models.ObjectContact, "c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "object_type", "local_id", "remote_id", "local_key", "last_synced_at", "last_seen_remote_modified_at"}).
			AddRow(int64(3), "org-1", "contact", "c1", "r1", "ada@example.com", now, now))

	m, err := repo.GetByLocalID(context.Background(), "org-1", models.ObjectContact, "c1")
	if err != nil {
		t.Fatalf("GetByLocalID failed: %v", err)
	}
	if m.RemoteID != "r1" {
		t.Errorf("got remote id %q, want r1", m.RemoteID)
	}
	if m.LocalKey == nil || *m.LocalKey != "ada@example.com" {
		t.Errorf("local_key not scanned: %+v", m)
	}
	if m.LastSeenRemoteModifiedAt == nil {
		t.Error("last_seen_remote_modified_at not scanned")
	}
}
