/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"selectedbounds/internal/domain"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores per-workspace derived data.
	IndexDirName  = ".sb"
	IndexFileName = "index.sqlite"

	// baseSchema is what ensureIndexSchema creates; runMigrations takes it to schemaVersion.
	baseSchema    = 1
	schemaVersion = 2
)

// Index records what the propagation service applied to each scene of a workspace.
// It is derived data; deleting it loses history only.
type Index struct {
	db   *sql.DB
	path string
}

// Run summarizes one propagation.
type Run struct {
	ID            int64
	At            time.Time
	Applied       []string
	Failed        []string
	NotApplicable bool
}

// IndexPath returns the full path to the workspace index database file.
func IndexPath(workspace string) string {
	return filepath.Join(workspace, IndexDirName, IndexFileName)
}

// OpenIndex ensures the index exists, enables WAL mode and brings the schema up to date.
func OpenIndex(workspace string) (*Index, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(slog.String("workspace", workspace))
	if strings.TrimSpace(workspace) == "" {
		return nil, errors.New("workspace is required")
	}
	if err := os.MkdirAll(filepath.Join(workspace, IndexDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}
	path := IndexPath(workspace)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return &Index{db: db, path: path}, nil
}

// OpenOrRebuildIndex opens the index and, if it is unreadable or fails its integrity
// check, moves it into .sb/backups and starts a fresh one. The bool reports a rebuild.
func OpenOrRebuildIndex(workspace string) (*Index, bool, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_rebuild")
	path := IndexPath(workspace)
	idx, err := OpenIndex(workspace)
	if err == nil {
		if idx.healthy() {
			return idx, false, nil
		}
		_ = idx.Close()
		err = errors.New("integrity check failed")
	}
	l.Warn("workspace index unusable, rebuilding", slog.String("path", path), slog.Any("err", err))
	backupIndexFile(path)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	idx, rerr := OpenIndex(workspace)
	if rerr != nil {
		return nil, false, fmt.Errorf("rebuild index: %w (open err: %v)", rerr, err)
	}
	return idx, true, nil
}

// Path returns the database file path.
func (x *Index) Path() string { return x.path }

// Close releases the database handle.
func (x *Index) Close() error { return x.db.Close() }

// RecordSceneSettings stores the settings last applied to a scene.
func (x *Index) RecordSceneSettings(ctx context.Context, sceneID, name string, s domain.SceneSettings) error {
	_, err := x.db.ExecContext(ctx, `INSERT INTO scene_settings
		(scene_id, name, mode, color_r, color_g, color_b, color_a, use_object_color, width, length, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scene_id) DO UPDATE SET
			name=excluded.name, mode=excluded.mode,
			color_r=excluded.color_r, color_g=excluded.color_g, color_b=excluded.color_b, color_a=excluded.color_a,
			use_object_color=excluded.use_object_color, width=excluded.width, length=excluded.length,
			updated_at=excluded.updated_at`,
		sceneID, name, string(s.Mode), s.Color[0], s.Color[1], s.Color[2], s.Color[3],
		boolToInt(s.UseObjectColor), s.Width, s.Length, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record scene settings %s: %w", sceneID, err)
	}
	return nil
}

// SceneSettings returns the settings last recorded for a scene.
func (x *Index) SceneSettings(ctx context.Context, sceneID string) (domain.SceneSettings, time.Time, bool, error) {
	var (
		s       domain.SceneSettings
		mode    string
		useObj  int
		updated string
	)
	err := x.db.QueryRowContext(ctx, `SELECT mode, color_r, color_g, color_b, color_a, use_object_color, width, length, updated_at
		FROM scene_settings WHERE scene_id=?`, sceneID).
		Scan(&mode, &s.Color[0], &s.Color[1], &s.Color[2], &s.Color[3], &useObj, &s.Width, &s.Length, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.SceneSettings{}, time.Time{}, false, nil
	case err != nil:
		return domain.SceneSettings{}, time.Time{}, false, fmt.Errorf("read scene settings %s: %w", sceneID, err)
	}
	s.Mode = domain.Mode(mode)
	s.UseObjectColor = useObj != 0
	ts, _ := time.Parse(time.RFC3339Nano, updated)
	return s, ts, true, nil
}

// RecordRun appends a propagation summary and returns its id.
func (x *Index) RecordRun(ctx context.Context, r Run) (int64, error) {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	res, err := x.db.ExecContext(ctx, `INSERT INTO propagation_runs (ts, applied, failed, not_applicable) VALUES (?, ?, ?, ?)`,
		r.At.UTC().Format(time.RFC3339Nano), strings.Join(r.Applied, ","), strings.Join(r.Failed, ","), boolToInt(r.NotApplicable))
	if err != nil {
		return 0, fmt.Errorf("record propagation run: %w", err)
	}
	return res.LastInsertId()
}

// Runs returns up to limit most recent propagation runs, newest first.
func (x *Index) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := x.db.QueryContext(ctx, `SELECT id, ts, applied, failed, not_applicable FROM propagation_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query propagation runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var (
			r               Run
			ts, appl, fails string
			na              int
		)
		if err := rows.Scan(&r.ID, &ts, &appl, &fails, &na); err != nil {
			return nil, fmt.Errorf("scan propagation run: %w", err)
		}
		r.At, _ = time.Parse(time.RFC3339Nano, ts)
		r.Applied = splitIDs(appl)
		r.Failed = splitIDs(fails)
		r.NotApplicable = na != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (x *Index) healthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var chk string
	if err := x.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.EqualFold(chk, "ok") {
		return false
	}
	_, err := x.db.ExecContext(ctx, `SELECT 1 FROM scene_settings LIMIT 1;`)
	return err == nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, baseSchema, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema for runMigrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureIndexSchema creates the version-1 tables.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS scene_settings (
			scene_id         TEXT    PRIMARY KEY,
			name             TEXT    NOT NULL,
			mode             TEXT    NOT NULL,
			color_r          REAL    NOT NULL,
			color_g          REAL    NOT NULL,
			color_b          REAL    NOT NULL,
			color_a          REAL    NOT NULL,
			use_object_color INTEGER NOT NULL,
			width            INTEGER NOT NULL,
			length           INTEGER NOT NULL,
			updated_at       TEXT    NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE TABLE IF NOT EXISTS propagation_runs (
					id             INTEGER PRIMARY KEY,
					ts             TEXT    NOT NULL,
					applied        TEXT    NOT NULL,
					failed         TEXT    NOT NULL,
					not_applicable INTEGER NOT NULL DEFAULT 0
				);`,
				`CREATE INDEX IF NOT EXISTS idx_propagation_runs_ts ON propagation_runs(ts);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// backupIndexFile copies the index into .sb/backups before it is discarded.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), time.Now().Format("20060102-150405")))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
