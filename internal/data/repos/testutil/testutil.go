package testutil

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/speech-to-contract/internal/data/db"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a freshly migrated database private to the test. It uses
// TEST_POSTGRES_DSN when set and an in-memory SQLite database otherwise.
// The SQLite handle keeps a single connection, so callers must not issue
// queries outside a transaction while that transaction is open.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}

	var (
		conn *gorm.DB
		err  error
	)
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		conn, err = gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			tb.Fatalf("open postgres: %v", err)
		}
		// Shared database: start from empty job tables.
		for _, table := range []string{"suggestions", "contracts", "generations", "transcriptions", "job_run"} {
			_ = conn.Exec("DROP TABLE IF EXISTS " + table).Error
		}
	} else {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
		conn, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			tb.Fatalf("open sqlite: %v", err)
		}
		sqlDB, err := conn.DB()
		if err != nil {
			tb.Fatalf("sqlite handle: %v", err)
		}
		sqlDB.SetMaxOpenConns(1)
		tb.Cleanup(func() { _ = sqlDB.Close() })
	}

	if err := db.AutoMigrateAll(conn); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return conn
}

// Tx opens a transaction that is rolled back when the test ends.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
