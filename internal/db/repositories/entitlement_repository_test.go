package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/portal-boost/portal/internal/db/models"
)

func newEntitlementRepo(t *testing.T) (*EntitlementRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEntitlementRepository(sqlx.NewDb(db, "sqlmock")), mock
}

var accessCols = []string{"user_id", "page_id", "enabled", "created_at"}

// ---------------------------------------------------------------------------
// ReplaceForUser
// ---------------------------------------------------------------------------

func TestReplaceForUser_Success(t *testing.T) {
	repo, mock := newEntitlementRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_page_access WHERE user_id").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO user_page_access").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_page_access").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assignments := []models.PageAssignment{
		{PageID: testPageID, Enabled: true},
		{PageID: uuid.New(), Enabled: false},
	}
	if err := repo.ReplaceForUser(context.Background(), testUserID, assignments); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReplaceForUser_EmptySetClearsAll(t *testing.T) {
	repo, mock := newEntitlementRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_page_access WHERE user_id").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	if err := repo.ReplaceForUser(context.Background(), testUserID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReplaceForUser_InsertErrorRollsBack(t *testing.T) {
	repo, mock := newEntitlementRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_page_access WHERE user_id").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO user_page_access").
		WillReturnError(errDB)
	mock.ExpectRollback()

	assignments := []models.PageAssignment{{PageID: testPageID, Enabled: true}}
	if err := repo.ReplaceForUser(context.Background(), testUserID, assignments); err == nil {
		t.Error("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// ListForUser / ListPagesForUser
// ---------------------------------------------------------------------------

func TestListForUser_Success(t *testing.T) {
	repo, mock := newEntitlementRepo(t)
	mock.ExpectQuery("SELECT.*FROM user_page_access WHERE user_id").
		WillReturnRows(sqlmock.NewRows(accessCols).
			AddRow(testUserID.String(), testPageID.String(), true, time.Now()))

	access, err := repo.ListForUser(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(access) != 1 {
		t.Fatalf("len(access) = %d, want 1", len(access))
	}
	if !access[0].Enabled {
		t.Error("expected Enabled = true")
	}
}

func TestListPagesForUser_OnlyEnabled(t *testing.T) {
	repo, mock := newEntitlementRepo(t)
	mock.ExpectQuery("SELECT.*FROM pages p.*JOIN user_page_access upa.*enabled = TRUE").
		WillReturnRows(samplePageRow())

	pages, err := repo.ListPagesForUser(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("len(pages) = %d, want 1", len(pages))
	}
	if pages[0].Slug != "sales" {
		t.Errorf("Slug = %s, want sales", pages[0].Slug)
	}
}

func TestListPagesForUser_Empty(t *testing.T) {
	repo, mock := newEntitlementRepo(t)
	mock.ExpectQuery("SELECT.*FROM pages p.*JOIN user_page_access upa").
		WillReturnRows(sqlmock.NewRows(pageCols))

	pages, err := repo.ListPagesForUser(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("len(pages) = %d, want 0", len(pages))
	}
}

// ---------------------------------------------------------------------------
// HasAccess
// ---------------------------------------------------------------------------

func TestHasAccess_True(t *testing.T) {
	repo, mock := newEntitlementRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasAccess(context.Background(), testUserID, testPageID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected access = true")
	}
}

func TestHasAccess_False(t *testing.T) {
	repo, mock := newEntitlementRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.HasAccess(context.Background(), testUserID, testPageID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected access = false")
	}
}

func TestHasAccess_DBError(t *testing.T) {
	repo, mock := newEntitlementRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnError(errDB)

	_, err := repo.HasAccess(context.Background(), testUserID, testPageID)
	if err == nil {
		t.Error("expected error, got nil")
	}
}
