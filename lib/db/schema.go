// Package db is the relational store: schema migrations, the data-revision
// safety gate, and typed CRUD over nodes and edges. SQLite via the pure-Go
// modernc.org/sqlite driver is the only engine; the store is a single file
// under the configured db_path, opened by exactly one writer.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DataRevision is bumped whenever the durable on-disk format changes in a
// way that isn't a clean additive migration — changed hash semantics,
// changed patch semantics, or a schema change too invasive to carry
// forward. Bumping it collapses every prior migration into a single
// fresh-install script and forces a wipe of existing stores on next open.
const DataRevision = 1

const revisionKey = "data_revision"

func migrationScripts() []string {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		panic(fmt.Sprintf("db: embedded migrations unreadable: %v", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	scripts := make([]string, 0, len(names))
	for _, name := range names {
		data, err := migrationFiles.ReadFile(filepath.Join("migrations", name))
		if err != nil {
			panic(fmt.Sprintf("db: embedded migration %s unreadable: %v", name, err))
		}
		scripts = append(scripts, string(data))
	}
	return scripts
}

// Open applies the revision gate, runs migrations, and returns a ready
// *sql.DB. diffsDir is needed only so a wipe can clear stale patch files
// alongside the stale database.
func Open(dbPath, diffsDir string) (*sql.DB, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return createFresh(dbPath)
	} else if err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1) // single-writer store; no multi-process support

	stored, hasRevision, err := readStoredRevision(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	legacy := false
	if !hasRevision {
		legacy, err = tableExists(conn, "nodes")
		if err != nil {
			conn.Close()
			return nil, err
		}
	}

	if (hasRevision && stored < DataRevision) || legacy {
		conn.Close()
		if err := wipe(dbPath, diffsDir); err != nil {
			return nil, err
		}
		return createFresh(dbPath)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func createFresh(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1) // single-writer store; no multi-process support
	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}
	if err := setRevision(conn, DataRevision); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// runMigrations applies, in order, every embedded script the store has not
// yet run. SQLite's user_version pragma records how many have been applied.
func runMigrations(conn *sql.DB) error {
	var applied int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&applied); err != nil {
		return &MigrationError{Underlying: err}
	}
	scripts := migrationScripts()
	for i := applied; i < len(scripts); i++ {
		if _, err := conn.Exec(scripts[i]); err != nil {
			return &MigrationError{Underlying: err}
		}
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return &MigrationError{Underlying: err}
		}
	}
	return nil
}

func readStoredRevision(conn *sql.DB) (uint32, bool, error) {
	exists, err := tableExists(conn, "dromos_meta")
	if err != nil || !exists {
		return 0, false, err
	}
	var value string
	err = conn.QueryRow("SELECT value FROM dromos_meta WHERE key = ?", revisionKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var rev uint32
	if _, err := fmt.Sscanf(value, "%d", &rev); err != nil {
		return 0, false, nil
	}
	return rev, true, nil
}

func setRevision(conn *sql.DB, rev uint32) error {
	_, err := conn.Exec(
		"INSERT INTO dromos_meta(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		revisionKey, fmt.Sprintf("%d", rev),
	)
	return err
}

func tableExists(conn *sql.DB, name string) (bool, error) {
	var found string
	err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// wipe discards the existing database file and every regular file under
// diffsDir, leaving only the directory itself. Called only once the
// revision gate has decided the on-disk store is incompatible.
func wipe(dbPath, diffsDir string) error {
	fmt.Fprintf(os.Stderr, "dromos: data revision out of date, wiping %s and %s\n", dbPath, diffsDir)

	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	entries, err := os.ReadDir(diffsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(diffsDir, e.Name())); err != nil {
			fmt.Fprintf(os.Stderr, "dromos: warning: failed to remove %s: %v\n", e.Name(), err)
		}
	}
	return nil
}

// MigrationError reports a failure bringing the schema up to date. It is
// always fatal: the caller must not proceed to touch data.
type MigrationError struct {
	Underlying error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration failed: %v", e.Underlying)
}

func (e *MigrationError) Unwrap() error {
	return e.Underlying
}
