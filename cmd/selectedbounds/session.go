/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"selectedbounds/internal/commands"
	"selectedbounds/internal/config"
	"selectedbounds/internal/defaults"
	"selectedbounds/internal/domain"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/overlay"
	"selectedbounds/internal/prefs"
	"selectedbounds/internal/propagate"
	"selectedbounds/internal/scene"
	"selectedbounds/internal/storage"
	"selectedbounds/internal/telemetry"
	"selectedbounds/internal/undo"
)

// session is one run of the tool: preferences loaded from the saved defaults
// and the user config, plus the scenes of a workspace.
type session struct {
	cfgPath string
	paths   config.PathsConfig
	store   *prefs.Store
	ctrl    *overlay.Controller
	reg     *scene.Registry
	idx     *storage.Index
	pers    *defaults.Persister
	disp    *commands.Dispatcher
	log     *slog.Logger
}

func openSession(cfg config.AppConfig, cfgPath, workspace string) (*session, error) {
	l := applog.WithComponent("cli")
	path := cfg.Paths.DefaultsFile
	if path == "" {
		p, err := defaults.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	pers := defaults.NewPersister(path)
	a, src := pers.LoadDefaults()
	l.Debug("defaults loaded", slog.String("source", string(src)), slog.String("path", path))

	initial, clamped, err := cfg.Preferences.Apply(a.Preferences())
	if err != nil {
		l.Warn("ignoring invalid preferences in config", slog.String("path", cfgPath), slog.Any("err", err))
	} else if clamped {
		l.Warn("out-of-range preferences in config were clamped", slog.String("path", cfgPath))
	}
	history := undo.NewManager(undo.Config{MaxPerScope: cfg.History.MaxSteps})
	store, lc, err := prefs.NewStore(initial, prefs.WithHistory(history))
	if err != nil {
		return nil, err
	}

	paths := cfg.Paths
	paths.DefaultsFile = path
	paths.Workspace = workspace
	s := &session{cfgPath: cfgPath, paths: paths, store: store, ctrl: overlay.NewController(lc), reg: scene.NewRegistry(), pers: pers, log: l}
	opts := []propagate.Option{propagate.WithEvents(telemetry.Default()), propagate.WithAutosave(true)}
	if workspace != "" {
		if _, err := s.reg.OpenWorkspace(workspace); err != nil {
			l.Warn("some scenes could not be opened", slog.Any("err", err))
		}
		idx, rebuilt, err := storage.OpenOrRebuildIndex(workspace)
		switch {
		case err != nil:
			l.Warn("workspace index unavailable", slog.Any("err", err))
		default:
			if rebuilt {
				l.Warn("workspace index was rebuilt", slog.String("path", idx.Path()))
			}
			s.idx = idx
			opts = append(opts, propagate.WithRecorder(idx))
		}
	}
	svc := propagate.New(store, propagate.RegistryTargets(s.reg), opts...)
	s.disp = commands.NewDispatcher(store, svc, pers, telemetry.Default())
	return s, nil
}

// Close writes scenes whose autosave failed during the session, then
// releases the index.
func (s *session) Close() {
	if err := s.reg.SaveDirty(); err != nil {
		s.log.Warn("some scenes have unsaved settings", slog.Any("err", err))
	}
	if s.idx != nil {
		if err := s.idx.Close(); err != nil {
			s.log.Warn("close index", slog.Any("err", err))
		}
	}
}

// persist writes the current preferences into the user config.
func (s *session) persist() error {
	snap := s.store.Snapshot()
	return config.Update(s.cfgPath, func(c *config.AppConfig) {
		c.Preferences = config.FromPreferences(snap)
	})
}

func (s *session) run(ctx context.Context, name string) commands.Status {
	st := s.disp.Run(ctx, name)
	if st.OK() && (name == commands.Undo || name == commands.Redo || name == commands.ResetDefaults) {
		if err := s.persist(); err != nil {
			return commands.Status{Level: commands.LevelError, Message: "could not update config: " + err.Error()}
		}
	}
	return st
}

func (s *session) set(field, value string) error {
	if err := s.store.Set(field, value); err != nil {
		return err
	}
	return s.persist()
}

func (s *session) show() string {
	var b strings.Builder
	for _, f := range prefs.EditableFields {
		v, _ := s.store.Value(f)
		if f == domain.FieldMode {
			v += " (" + s.store.Mode().Label() + ")"
		}
		fmt.Fprintf(&b, "%-20s %s\n", f, v)
	}
	fmt.Fprintf(&b, "%-20s %v\n", domain.FieldRunning, s.store.Running())
	fmt.Fprintf(&b, "%-20s %s%s\n", "defaults file", s.paths.DefaultsFile, envNote("paths.defaults_file"))
	fmt.Fprintf(&b, "%-20s %s%s\n", "workspace", s.paths.Workspace, envNote("paths.workspace"))
	return b.String()
}

// envNote marks values that come from an environment override.
func envNote(key string) string {
	if name, ok := config.EnvOverrideFor(key); ok {
		return " (from " + name + ")"
	}
	return ""
}

func (s *session) createScene(dir, name string) (*scene.Document, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return s.reg.Create(abs, name, s.store.Mirror())
}

func (s *session) importLegacy(path string) error {
	a, err := readLegacy(path)
	if err != nil {
		return err
	}
	if err := s.store.Replace(a.Preferences()); err != nil {
		return err
	}
	if err := s.pers.SaveDefaults(s.store.Snapshot()); err != nil {
		return err
	}
	return s.persist()
}

func readLegacy(path string) (defaults.Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return defaults.Artifact{}, err
	}
	defer f.Close()
	return defaults.ImportLegacy(f)
}

func describeScene(p overlay.Preferences, d *scene.Document) string {
	eff := overlay.Effective(p, d)
	state := "hidden"
	if overlay.ShouldDraw(p, d) {
		state = "drawn"
	}
	return fmt.Sprintf("%-16s %s  mode=%s (%s) color=%s object_color=%v width=%d length=%d%% (%s)",
		d.Name(), d.ID(), eff.Mode, eff.Mode.Label(), prefs.FormatColor(eff.Color), eff.UseObjectColor, eff.Width, eff.Length, state)
}

func exitCode(err error) int {
	if domain.IsValidation(err) {
		return 2
	}
	var pe *domain.PersistenceError
	if errors.As(err, &pe) {
		return 3
	}
	return 1
}
