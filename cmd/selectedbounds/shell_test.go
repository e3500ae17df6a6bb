/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"selectedbounds/internal/config"
	"selectedbounds/internal/defaults"
	"selectedbounds/internal/domain"
	"selectedbounds/internal/storage"
)

func newTestSession(t *testing.T) (*session, string) {
	t.Helper()
	root := t.TempDir()
	ws := filepath.Join(root, "ws")
	if _, err := storage.CreateScene(ws, "Shot", domain.SceneSettings{Mode: domain.ModeNone, Color: domain.Color{0, 0, 0, 1}, Width: 1, Length: 10}); err != nil {
		t.Fatalf("CreateScene: %v", err)
	}
	cfg := config.Defaults()
	cfg.Paths.DefaultsFile = filepath.Join(root, defaults.FileName)
	s, err := openSession(cfg, filepath.Join(root, "config.yaml"), ws)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s, root
}

func TestShellSession(t *testing.T) {
	s, root := newTestSession(t)
	id := s.reg.Documents()[0].ID()
	in := strings.NewReader(strings.Join([]string{
		"set width 9",
		"update_settings",
		"scenes",
		"undo",
		"get width",
		"start",
		"start",
		"status",
		"scene " + id,
		"bogus",
		"quit",
		"show",
	}, "\n"))
	var out bytes.Buffer
	if code := runShell(context.Background(), s, in, &out); code != 0 {
		t.Fatalf("runShell exit %d", code)
	}
	got := out.String()
	for _, want := range []string{
		"width = 9",
		"INFO: updated 1 scene(s)",
		"width=9",
		"INFO: undo done",
		"> 2\n",
		"overlay started",
		"overlay is already running",
		"running=true scenes=1 undo_steps=0",
		"can_redo=true",
		"Shot             " + id + "  mode=SELECTED (Selected Objects)",
		`unknown command "bogus"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("shell output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "running ") {
		t.Fatalf("input after quit was executed:\n%s", got)
	}

	// undo was persisted to the user config
	b, err := os.ReadFile(filepath.Join(root, "config.yaml"))
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(b), "width: 2") {
		t.Fatalf("config does not hold the undone width:\n%s", b)
	}
}

func TestSessionUsesConfigPreferences(t *testing.T) {
	root := t.TempDir()
	w := 15
	cfg := config.Defaults()
	cfg.Paths.DefaultsFile = filepath.Join(root, defaults.FileName)
	cfg.Preferences = config.PreferencesConfig{Mode: "active", Width: &w}
	s, err := openSession(cfg, filepath.Join(root, "config.yaml"), "")
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer s.Close()
	if s.store.Mode() != domain.ModeActive || s.store.Width() != 15 || s.store.Length() != 25 {
		t.Fatalf("unexpected preferences: %+v", s.store.Snapshot())
	}
	if s.store.Running() {
		t.Fatalf("session must not start running")
	}
}

func TestImportLegacy(t *testing.T) {
	s, root := newTestSession(t)
	legacy := filepath.Join(root, "config.py")
	src := "defaults = {'mode': 'ACTIVE', 'color': (0.0, 1.0, 0.0, 1.0), 'use_object_color': True, 'width': 4, 'length': 60, 'scene_independent': False, 'display_preferences': True}\n"
	if err := os.WriteFile(legacy, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.importLegacy(legacy); err != nil {
		t.Fatalf("importLegacy: %v", err)
	}
	a, err := defaults.Load(s.pers.Path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Mode != "ACTIVE" || a.Width != 4 || !a.UseObjectColor {
		t.Fatalf("imported artifact mismatch: %+v", a)
	}
}

func TestShowMarksEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvWorkspace, "/elsewhere")
	s, _ := newTestSession(t)
	out := s.show()
	for _, want := range []string{"SELECTED (Selected Objects)", "(from " + config.EnvWorkspace + ")", defaults.FileName} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestCloseSavesDirtyScenes(t *testing.T) {
	s, _ := newTestSession(t)
	doc := s.reg.Documents()[0]
	if err := doc.ApplySettings(s.store.Mirror()); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	if !doc.Dirty() {
		t.Fatalf("expected dirty scene")
	}
	s.Close()
	h, err := storage.OpenScene(doc.Path())
	if err != nil {
		t.Fatalf("OpenScene: %v", err)
	}
	if h.Scene.Settings != s.store.Mirror() {
		t.Fatalf("dirty scene not saved on close: %+v", h.Scene.Settings)
	}
}
