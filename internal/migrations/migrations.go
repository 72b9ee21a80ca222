package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	pg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/playmatatu/billiards/internal/database"
)

// Dir is where the file-based migrations live, relative to the working directory.
const Dir = "migrations"

// RunMigrations brings the schema up to date. Postgres uses the file-based
// migrations in ./migrations; SQLite gets the same schema applied inline on db.
func RunMigrations(databaseURL string, db *sqlx.DB) error {
	if databaseURL == "" {
		return fmt.Errorf("database URL is empty")
	}
	if database.IsSQLite(databaseURL) {
		if db == nil {
			return fmt.Errorf("sqlite migrations need an open connection")
		}
		if err := ApplySQLiteSchema(db); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
		log.Printf("[MIGRATE] SQLite schema applied")
		return nil
	}
	return runPostgres(databaseURL)
}

// runPostgres will baseline the DB to the latest migration if the schema
// already exists (shots table present) but migrate's metadata table is missing.
func runPostgres(databaseURL string) error {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open DB: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pg.WithInstance(sqlDB, &pg.Config{MigrationsTable: "schema_migrations_migrate"})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+Dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	var shotsExist bool
	row := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name='shots')")
	if err := row.Scan(&shotsExist); err == nil && shotsExist {
		var migrateTableExist bool
		row2 := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name='schema_migrations_migrate')")
		if err := row2.Scan(&migrateTableExist); err == nil && !migrateTableExist {
			latest := findLatestMigrationVersion(Dir)
			if latest > 0 {
				log.Printf("[MIGRATE] Baseline DB to version %d (existing schema present)", latest)
				if ferr := m.Force(int(latest)); ferr != nil {
					log.Printf("[MIGRATE] Force to version %d failed: %v", latest, ferr)
				}
			}
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	log.Printf("[MIGRATE] Migrations applied (no changes or up completed)")
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS table_sessions (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP NULL
	);`,
	`CREATE TABLE IF NOT EXISTS shots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_id TEXT NOT NULL,
		shot_number INTEGER NOT NULL,
		direction_x REAL NOT NULL,
		direction_y REAL NOT NULL,
		magnitude REAL NOT NULL,
		screw REAL NOT NULL DEFAULT 0,
		english REAL NOT NULL DEFAULT 0,
		pocketed TEXT NOT NULL DEFAULT '[]',
		first_contact INTEGER NOT NULL DEFAULT -1,
		ball_hits INTEGER NOT NULL DEFAULT 0,
		cushion_hits INTEGER NOT NULL DEFAULT 0,
		ticks INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		final_state TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_shots_table ON shots (table_id, shot_number);`,
}

// ApplySQLiteSchema creates the tables if they do not exist.
func ApplySQLiteSchema(db *sqlx.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// findLatestMigrationVersion scans the migrations directory for files that start with
// a numeric version prefix (e.g. 000001_) and returns the highest version number.
func findLatestMigrationVersion(dir string) int64 {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	re := regexp.MustCompile(`^0*([0-9]+)_`)
	var max int64
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		m := re.FindStringSubmatch(name)
		if len(m) < 2 {
			continue
		}
		v, _ := strconv.ParseInt(m[1], 10, 64)
		if v > max {
			max = v
		}
	}

	return max
}
