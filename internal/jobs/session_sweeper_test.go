package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/portal-boost/portal/internal/db/repositories"
)

var errDB = errors.New("db error")

func newSweeperMock(t *testing.T) (*SessionSweeper, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionSweeper(repositories.NewSessionRepository(db), time.Hour), mock
}

func TestRunSweep_DeletesExpiredAndCounts(t *testing.T) {
	sweeper, mock := newSweeperMock(t)

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \$1`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sessions WHERE expires_at > \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	sweeper.runSweep(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunSweep_DeleteErrorSkipsCount(t *testing.T) {
	sweeper, mock := newSweeperMock(t)

	mock.ExpectExec(`DELETE FROM sessions`).WillReturnError(errDB)

	sweeper.runSweep(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSweeper_StopEndsLoop(t *testing.T) {
	sweeper, mock := newSweeperMock(t)

	mock.ExpectExec(`DELETE FROM sessions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
