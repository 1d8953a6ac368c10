package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"outreachai/internal/config"
)

// Migration runner for the campaign service schema.
//
// Usage: go run scripts/migrate.go [up|down|status]
//   up      apply all pending migrations from migrations/*.sql
//   down    roll back the most recently applied migration
//   status  list migrations and whether each is applied
//
// Applied versions are tracked in schema_migrations; every migration and
// rollback runs inside a transaction.

const migrationsDir = "migrations"

var migrationFilePattern = regexp.MustCompile(`^(\d{3})_(.+)\.sql$`)

// rollbackSQL drops each migration's tables, keyed by version
var rollbackSQL = map[int]string{
	1: "DROP TABLE IF EXISTS campaigns CASCADE;",
	2: "DROP TABLE IF EXISTS users CASCADE;",
	3: "DROP TABLE IF EXISTS unsubscribed_emails CASCADE;",
}

type migrationFile struct {
	version int
	name    string
	path    string
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		log.Fatal("usage: go run scripts/migrate.go [up|down|status]")
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		log.Fatalf("failed to create schema_migrations: %v", err)
	}

	switch command {
	case "up":
		err = migrateUp(db)
	case "down":
		err = migrateDown(db)
	case "status":
		err = printStatus(db)
	default:
		log.Fatalf("unknown command %q (expected up, down or status)", command)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

// loadFiles reads migrations/*.sql, sorted by version
func loadFiles() ([]migrationFile, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", migrationsDir, err)
	}

	var files []migrationFile
	for _, entry := range entries {
		matches := migrationFilePattern.FindStringSubmatch(entry.Name())
		if entry.IsDir() || matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		files = append(files, migrationFile{
			version: version,
			name:    matches[2],
			path:    filepath.Join(migrationsDir, entry.Name()),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// appliedVersions returns the applied migrations keyed by version
func appliedVersions(db *sql.DB) (map[int]time.Time, error) {
	rows, err := db.Query(`SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

func migrateUp(db *sql.DB) error {
	files, err := loadFiles()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	count := 0
	for _, file := range files {
		if _, done := applied[file.version]; done {
			continue
		}

		content, err := os.ReadFile(file.path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file.path, err)
		}

		if err := inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(string(content)); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, file.version, file.name)
			return err
		}); err != nil {
			return fmt.Errorf("migration %03d_%s: %w", file.version, file.name, err)
		}

		log.Printf("applied %03d_%s", file.version, file.name)
		count++
	}

	if count == 0 {
		log.Println("nothing to apply, schema is up to date")
	} else {
		log.Printf("applied %d migration(s)", count)
	}
	return nil
}

func migrateDown(db *sql.DB) error {
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		log.Println("nothing to roll back")
		return nil
	}

	last := 0
	for version := range applied {
		if version > last {
			last = version
		}
	}

	dropSQL, ok := rollbackSQL[last]
	if !ok {
		return fmt.Errorf("no rollback defined for version %d", last)
	}

	if err := inTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(dropSQL); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM schema_migrations WHERE version = $1`, last)
		return err
	}); err != nil {
		return fmt.Errorf("rollback of version %d: %w", last, err)
	}

	log.Printf("rolled back version %03d", last)
	return nil
}

func printStatus(db *sql.DB) error {
	files, err := loadFiles()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, file := range files {
		if at, done := applied[file.version]; done {
			fmt.Printf("%03d_%s  applied %s\n", file.version, file.name, at.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Printf("%03d_%s  pending\n", file.version, file.name)
		}
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back on error
func inTx(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
