/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"selectedbounds/internal/domain"
	"selectedbounds/internal/storage"
)

func settings(mode domain.Mode, width int) domain.SceneSettings {
	return domain.SceneSettings{Mode: mode, Color: domain.Color{1, 1, 1, 1}, Width: width, Length: 50}
}

func TestRegistryCreateOpenWorkspace(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	a, err := r.Create(dir, "alpha", settings(domain.ModeNone, 1))
	if err != nil {
		t.Fatalf("Create alpha: %v", err)
	}
	if _, err := r.Create(dir, "beta", settings(domain.ModeActive, 4)); err != nil {
		t.Fatalf("Create beta: %v", err)
	}

	r2 := NewRegistry()
	docs, err := r2.OpenWorkspace(dir)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	if len(docs) != 2 || r2.Len() != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	got, ok := r2.Get(a.ID())
	if !ok || got.Name() != "alpha" || got.Settings() != settings(domain.ModeNone, 1) {
		t.Fatalf("reopened alpha mismatch: ok=%v", ok)
	}
	names := []string{}
	for _, d := range r2.Documents() {
		names = append(names, d.Name())
	}
	if names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("Documents order = %v", names)
	}
}

func TestOpenWorkspaceSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	if _, err := r.Create(dir, "good", settings(domain.ModeNone, 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken"+storage.SceneFileSuffix), []byte("nope"), 0o644); err != nil {
		t.Fatalf("write broken: %v", err)
	}
	r2 := NewRegistry()
	docs, err := r2.OpenWorkspace(dir)
	if err == nil {
		t.Fatalf("expected error for broken scene")
	}
	if len(docs) != 1 || docs[0].Name() != "good" {
		t.Fatalf("expected the good scene to stay open, got %d", len(docs))
	}
}

func TestApplySettingsMarksDirtyAndSaves(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	d, err := r.Create(dir, "shot", settings(domain.ModeNone, 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.ApplySettings(settings(domain.ModeSelected, 6)); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	if !d.Dirty() {
		t.Fatalf("document should be dirty")
	}
	if err := r.SaveDirty(); err != nil {
		t.Fatalf("SaveDirty: %v", err)
	}
	if d.Dirty() {
		t.Fatalf("document should be clean after save")
	}
	h, err := storage.OpenScene(d.Path())
	if err != nil {
		t.Fatalf("OpenScene: %v", err)
	}
	if h.Scene.Settings != settings(domain.ModeSelected, 6) {
		t.Fatalf("saved settings = %+v", h.Scene.Settings)
	}
}

func TestApplySettingsValidates(t *testing.T) {
	d := NewDocument(domain.Scene{ID: "x", Name: "x", Settings: settings(domain.ModeNone, 1)})
	if err := d.ApplySettings(settings(domain.ModeNone, 0)); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if d.Dirty() {
		t.Fatalf("rejected update must not dirty the document")
	}
}

func TestCloseRejectsStaleUpdates(t *testing.T) {
	r := NewRegistry()
	d := NewDocument(domain.Scene{ID: "s1", Name: "one", Settings: settings(domain.ModeNone, 1)})
	if err := r.Add(d); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(d); err == nil {
		t.Fatalf("duplicate Add should fail")
	}
	if err := r.Close("s1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.ApplySettings(settings(domain.ModeActive, 2)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := r.Close("s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryDocumentSaveAs(t *testing.T) {
	d := NewDocument(domain.Scene{ID: "mem", Name: "mem", Settings: settings(domain.ModeNone, 1)})
	if err := d.Save(); err != nil {
		t.Fatalf("Save without path should be a no-op: %v", err)
	}
	path := storage.ScenePath(t.TempDir(), "mem")
	if err := d.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("scene file missing: %v", err)
	}
}
