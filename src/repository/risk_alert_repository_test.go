package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRiskAlertRepositoryFindActiveByType(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &RiskAlertRepository{db: mockDB}

	t.Run("returns active alert", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "portfolio_id", "alert_type", "severity", "is_active"}).
			AddRow(5, 1, "concentration", "medium", true)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "risk_alerts" WHERE portfolio_id = $1 AND alert_type = $2 AND is_active = $3 AND resolved_at IS NULL ORDER BY "risk_alerts"."id" LIMIT $4`)).
			WithArgs(uint(1), "concentration", true, 1).
			WillReturnRows(rows)

		alert, err := repo.FindActiveByType(context.Background(), 1, "concentration")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if alert == nil || alert.ID != 5 {
			t.Fatalf("expected alert 5, got %+v", alert)
		}
	})

	t.Run("returns nil when none active", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "risk_alerts" WHERE portfolio_id = $1 AND alert_type = $2 AND is_active = $3 AND resolved_at IS NULL ORDER BY "risk_alerts"."id" LIMIT $4`)).
			WithArgs(uint(1), "drawdown", true, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		alert, err := repo.FindActiveByType(context.Background(), 1, "drawdown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if alert != nil {
			t.Fatalf("expected nil alert, got %+v", alert)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestRiskAlertRepositoryResolve(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &RiskAlertRepository{db: mockDB}

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "risk_alerts" SET "is_active"=$1,"resolved_at"=$2 WHERE id = $3`)).
		WithArgs(false, at, uint(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Resolve(context.Background(), 9, at); err != nil {
		t.Fatalf("unexpected error resolving alert: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
