package repository

// Test index:
// 1. TestTradeRepositoryCreateAndFind
// 2. TestTradeRepositoryClose
// 3. TestTradeRepositoryCloseMissingRow
// 4. TestTradeRepositorySearchFilters

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"signalbridge/src/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func TestTradeRepositoryCreateAndFind(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(db)

	trade := &model.TradeRecord{
		Time:          time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Coin:          "BTC",
		Side:          model.SideLong,
		Source:        "webhook",
		Leverage:      10,
		Size:          decimal.RequireFromString("0.02"),
		CollateralUSD: decimal.RequireFromString("100"),
		EntryPrice:    decimal.RequireFromString("50000"),
		Status:        model.TradeStatusOpen,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "trades"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), trade); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	row := sqlmock.NewRows([]string{"id", "coin", "side", "status"}).
		AddRow(1, "BTC", "long", "open")
	mock.ExpectQuery(`SELECT \* FROM "trades" WHERE coin = \$1 AND status = \$2`).
		WithArgs("BTC", model.TradeStatusOpen, 1).
		WillReturnRows(row)

	found, err := repo.FindOpenByCoin(context.Background(), "BTC")
	if err != nil || found == nil {
		t.Fatalf("expected open trade, got %+v err=%v", found, err)
	}

	mock.ExpectQuery(`SELECT \* FROM "trades" WHERE coin = \$1 AND status = \$2`).
		WithArgs("ETH", model.TradeStatusOpen, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	missing, err := repo.FindOpenByCoin(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("missing trade must not be an error, got %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing trade, got %+v", missing)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTradeRepositoryClose(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "trades" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Close(context.Background(), 1, TradeClose{
		ExitPrice:  decimal.RequireFromString("51000"),
		PnL:        decimal.RequireFromString("20"),
		PnLPercent: decimal.RequireFromString("20"),
		Status:     model.TradeStatusClosed,
		Reason:     model.CloseReasonTakeProfit,
		At:         time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTradeRepositoryCloseMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "trades" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Close(context.Background(), 42, TradeClose{Status: model.TradeStatusClosed})
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound for already-closed trade, got %v", err)
	}
}

func TestTradeRepositorySearchFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(db)

	rows := sqlmock.NewRows([]string{"id", "coin", "status"}).
		AddRow(2, "BTC", "closed").
		AddRow(1, "BTC", "closed")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE coin = $1 AND status = $2 ORDER BY id DESC LIMIT $3`)).
		WithArgs("BTC", "closed", 10).
		WillReturnRows(rows)

	results, err := repo.Search(context.Background(), TradeSearchOptions{Coin: "BTC", Status: "closed", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error searching trades: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(results))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
