package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/bodytemp-bot/internal/domain"
)

// newTestDB opens a private in-memory SQLite store with the default dataset
// and, unless skipMigrate, the full schema.
func newTestDB(t *testing.T, skipMigrate ...bool) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := Open(Options{Driver: DriverSQLite, DSN: dsn, Dataset: DefaultDataset, Silent: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	if len(skipMigrate) == 0 || !skipMigrate[0] {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestOpen_ErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "app.db")

	db, err := Open(Options{Driver: DriverSQLite, DSN: bad, Silent: true})
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestOpen_RejectsUnknownDriverAndEmptyDSN(t *testing.T) {
	if _, err := Open(Options{Driver: "bigtable", DSN: "x"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Options{Driver: DriverSQLite, DSN: "  "}); err == nil {
		t.Fatalf("expected error for empty sqlite DSN")
	}
	if _, err := Open(Options{Driver: DriverPostgres, DSN: ""}); err == nil {
		t.Fatalf("expected error for empty postgres DSN")
	}
}

func TestOpen_FileDB_PragmasPoolAndDatasetTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bodytemp.db")

	db, err := Open(Options{Driver: DriverSQLite, DSN: path, Dataset: "health", Silent: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var journalMode string
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}
	var busyMS int
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d", busyMS)
	}
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 10 {
		t.Fatalf("expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []string{"health_user", "health_temperature", "health_processed_event"} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table %s to exist", tbl)
		}
	}
	if got := tableName(db, &domain.Temperature{}); got != "health_temperature" {
		t.Fatalf("tableName = %q", got)
	}
}

func TestNamingStrategy(t *testing.T) {
	if p := namingStrategy(DriverPostgres, "ds").TablePrefix; p != "ds." {
		t.Fatalf("postgres prefix = %q", p)
	}
	if p := namingStrategy(DriverSQLite, "ds").TablePrefix; p != "ds_" {
		t.Fatalf("sqlite prefix = %q", p)
	}
	ns := namingStrategy(DriverSQLite, "  ")
	if ns.TablePrefix != "" || !ns.SingularTable {
		t.Fatalf("unexpected strategy %+v", ns)
	}
}
