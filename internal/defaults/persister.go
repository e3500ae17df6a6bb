/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package defaults

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"selectedbounds/internal/domain"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/storage"
)

// FileName is the artifact name next to the executable.
const FileName = "defaults.yaml"

// ErrNoArtifact is returned by Load when no artifact has been saved yet.
var ErrNoArtifact = errors.New("no defaults artifact")

// Source tells where LoadDefaults found its values.
type Source string

const (
	SourceFile    Source = "file"
	SourceBackup  Source = "backup"
	SourceFactory Source = "factory"
)

// DefaultPath returns <dir of executable>/defaults.yaml.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), FileName), nil
}

// Persister owns the defaults artifact at Path. It is the only writer of that file.
type Persister struct {
	Path string
	// KeepBackups bounds the number of previous artifacts kept in backups/.
	KeepBackups int

	now func() time.Time
	log *slog.Logger
}

// NewPersister returns a persister for the artifact at path.
func NewPersister(path string) *Persister {
	return &Persister{
		Path:        path,
		KeepBackups: 5,
		now:         time.Now,
		log:         applog.WithComponent("defaults"),
	}
}

// SaveDefaults snapshots the seven persisted fields of p and atomically replaces the
// artifact. Failures to write are returned as *domain.PersistenceError.
func (ps *Persister) SaveDefaults(p domain.Preferences) error {
	l := applog.WithOperation(ps.log, "save_defaults").With(slog.String("path", ps.Path))
	a := FromPreferences(p)
	data, err := a.Marshal(ps.now())
	if err != nil {
		return err
	}
	// never write something the next startup would refuse to load
	if _, err := Parse(data); err != nil {
		return err
	}
	if n := storage.SweepTemps(ps.Path); n > 0 {
		l.Info("removed leftovers of an interrupted save", slog.Int("count", n))
	}
	if err := storage.WriteAtomic(ps.Path, data, storage.WriteOptions{Backup: true, KeepBackups: ps.KeepBackups}); err != nil {
		l.Error("save defaults failed", slog.Any("err", err))
		return &domain.PersistenceError{Op: "write", Path: ps.Path, Err: err}
	}
	l.Info("defaults saved")
	return nil
}

// Load reads and validates the artifact. A missing file yields ErrNoArtifact.
func (ps *Persister) Load() (Artifact, error) {
	return Load(ps.Path)
}

// Load reads and validates the artifact at path.
func Load(path string) (Artifact, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Artifact{}, fmt.Errorf("%w at %s", ErrNoArtifact, path)
	}
	if err != nil {
		return Artifact{}, &domain.PersistenceError{Op: "read", Path: path, Err: err}
	}
	return Parse(b)
}

// LoadDefaults returns the artifact, falling back to its latest readable backup and
// finally to the factory defaults. It never fails; problems are logged.
func (ps *Persister) LoadDefaults() (Artifact, Source) {
	l := applog.WithOperation(ps.log, "load_defaults").With(slog.String("path", ps.Path))
	a, err := ps.Load()
	if err == nil {
		return a, SourceFile
	}
	if errors.Is(err, ErrNoArtifact) {
		l.Debug("no saved defaults, using factory values")
		return Factory(), SourceFactory
	}
	l.Warn("saved defaults unreadable", slog.Any("err", err))
	backups, berr := storage.Backups(ps.Path)
	if berr == nil {
		for i := len(backups) - 1; i >= 0; i-- {
			if a, err := Load(backups[i]); err == nil {
				l.Warn("using backup defaults", slog.String("backup", backups[i]))
				return a, SourceBackup
			}
		}
	}
	l.Warn("no usable backup, using factory values")
	return Factory(), SourceFactory
}
