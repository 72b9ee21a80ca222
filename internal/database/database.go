package database

import (
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// IsSQLite reports whether url selects the embedded SQLite driver
// (sqlite://path/to.db or sqlite::memory:).
func IsSQLite(url string) bool {
	return strings.HasPrefix(url, "sqlite:")
}

// driverFor maps a DATABASE_URL to a driver name and DSN.
func driverFor(url string) (string, string) {
	if IsSQLite(url) {
		dsn := strings.TrimPrefix(url, "sqlite://")
		dsn = strings.TrimPrefix(dsn, "sqlite:")
		return "sqlite", dsn
	}
	return "postgres", url
}

// Connect establishes a connection to PostgreSQL or SQLite
func Connect(databaseURL string) (*sqlx.DB, error) {
	driver, dsn := driverFor(databaseURL)
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	if driver == "sqlite" {
		// One connection, so an in-memory database is shared by every query.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
