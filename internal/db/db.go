package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/willow/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 3

// FileName is the database file created under the base directory.
const FileName = "willow.db"

// Init initializes the SQLite database at baseDir/willow.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.willow.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection.
	// Immediate transactions take the write lock up front so concurrent
	// atomic swaps queue on busy_timeout instead of failing on upgrade.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: profiles
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS profiles (
		  id           TEXT PRIMARY KEY,
		  user_id      TEXT NOT NULL,
		  display_name TEXT NOT NULL,
		  age_mode     TEXT NOT NULL,
		  created_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_profiles_user
		ON profiles(user_id, created_at);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: avatar history. No foreign key: records of a
	// deleted profile are left orphaned.
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS avatars (
		  id            TEXT PRIMARY KEY,
		  profile_id    TEXT NOT NULL,
		  skin_tone_id  TEXT NOT NULL,
		  face_id       TEXT NOT NULL,
		  hair_id       TEXT NOT NULL,
		  hair_color_id TEXT NOT NULL,
		  outfit_id     TEXT NOT NULL,
		  accessory_id  TEXT,
		  is_active     INTEGER NOT NULL DEFAULT 0,
		  created_at    INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_avatars_profile_created
		ON avatars(profile_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_avatars_profile_active
		ON avatars(profile_id)
		WHERE is_active = 1;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	// Migration 2 -> 3: at most one active avatar per profile. Older
	// databases may already hold several; the newest one stays active.
	if version < 3 {
		schema := `
		UPDATE avatars SET is_active = 0
		WHERE is_active = 1 AND EXISTS (
		  SELECT 1 FROM avatars newer
		  WHERE newer.profile_id = avatars.profile_id
		    AND newer.is_active = 1
		    AND (newer.created_at > avatars.created_at
		      OR (newer.created_at = avatars.created_at AND newer.id > avatars.id))
		);

		DROP INDEX IF EXISTS idx_avatars_profile_active;

		CREATE UNIQUE INDEX IF NOT EXISTS idx_avatars_one_active
		ON avatars(profile_id)
		WHERE is_active = 1;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 3 failed: %w", err)
		}
		if err := SetUserVersion(db, 3); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
