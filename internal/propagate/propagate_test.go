/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package propagate

import (
	"context"
	"errors"
	"os"
	"testing"

	"selectedbounds/internal/domain"
	"selectedbounds/internal/prefs"
	"selectedbounds/internal/scene"
	"selectedbounds/internal/storage"
)

type recordedEvent struct {
	name  string
	props map[string]any
}

type eventLog struct{ events []recordedEvent }

func (e *eventLog) Event(name string, props map[string]any) {
	e.events = append(e.events, recordedEvent{name, props})
}

func newStore(t *testing.T, independent bool) *prefs.Store {
	t.Helper()
	st, _, err := prefs.NewStore(domain.Preferences{
		Mode:             domain.ModeSelected,
		Color:            domain.Color{1, 0, 0, 1},
		UseObjectColor:   false,
		Width:            2,
		Length:           25,
		SceneIndependent: independent,
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return st
}

func twoScenes(t *testing.T, dir string) (*scene.Registry, *scene.Document, *scene.Document) {
	t.Helper()
	r := scene.NewRegistry()
	a, err := r.Create(dir, "A", domain.SceneSettings{Mode: domain.ModeNone, Color: domain.Color{0, 0, 1, 1}, Width: 5, Length: 50})
	if err != nil {
		t.Fatalf("Create A: %v", err)
	}
	b, err := r.Create(dir, "B", domain.SceneSettings{Mode: domain.ModeActive, Color: domain.Color{0, 1, 0, 0.5}, UseObjectColor: true, Width: 9, Length: 90})
	if err != nil {
		t.Fatalf("Create B: %v", err)
	}
	return r, a, b
}

func TestPropagateTwoScenes(t *testing.T) {
	st := newStore(t, false)
	r, a, b := twoScenes(t, t.TempDir())
	ev := &eventLog{}
	svc := New(st, RegistryTargets(r), WithEvents(ev))

	res, err := svc.Propagate(context.Background())
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	want := domain.SceneSettings{Mode: domain.ModeSelected, Color: domain.Color{1, 0, 0, 1}, UseObjectColor: false, Width: 2, Length: 25}
	if a.Settings() != want || b.Settings() != want {
		t.Fatalf("settings not propagated: A=%+v B=%+v", a.Settings(), b.Settings())
	}
	if res.NotApplicable || len(res.Applied) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(ev.events) != 1 || ev.events[0].name != "settings_propagated" || ev.events[0].props["applied"] != 2 {
		t.Fatalf("events = %+v", ev.events)
	}
}

func TestPropagateIsNoOpWhenSceneIndependent(t *testing.T) {
	st := newStore(t, true)
	r, a, b := twoScenes(t, t.TempDir())
	beforeA, beforeB := a.Settings(), b.Settings()

	res, err := New(st, RegistryTargets(r)).Propagate(context.Background())
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if !res.NotApplicable || len(res.Applied) != 0 {
		t.Fatalf("expected not-applicable result, got %+v", res)
	}
	if a.Settings() != beforeA || b.Settings() != beforeB || a.Dirty() || b.Dirty() {
		t.Fatalf("settings touched while scene independent")
	}
}

func TestPropagatePartialFailure(t *testing.T) {
	st := newStore(t, false)
	r, a, b := twoScenes(t, t.TempDir())
	if err := r.Close(b.ID()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	targets := func() []Target { return []Target{a, b} }

	res, err := New(st, targets).Propagate(context.Background())
	var pf *domain.PropagationPartialFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected PropagationPartialFailure, got %v", err)
	}
	if ids := pf.IDs(); len(ids) != 1 || ids[0] != b.ID() {
		t.Fatalf("failing ids = %v", ids)
	}
	if !errors.Is(err, scene.ErrClosed) {
		t.Fatalf("expected ErrClosed in chain: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0] != a.ID() || a.Settings() != st.Mirror() {
		t.Fatalf("remaining scene not updated: %+v", res)
	}
}

func TestPropagateCancelled(t *testing.T) {
	st := newStore(t, false)
	r, a, _ := twoScenes(t, t.TempDir())
	before := a.Settings()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(st, RegistryTargets(r)).Propagate(ctx)
	var pf *domain.PropagationPartialFailure
	if !errors.As(err, &pf) || len(pf.Failures) != 2 {
		t.Fatalf("expected both scenes reported, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain: %v", err)
	}
	if len(res.Applied) != 0 || a.Settings() != before {
		t.Fatalf("scene updated after cancellation")
	}
}

func TestPropagateRecordsAndAutosaves(t *testing.T) {
	dir := t.TempDir()
	st := newStore(t, false)
	r, a, _ := twoScenes(t, dir)
	idx, err := storage.OpenIndex(dir)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	res, err := New(st, RegistryTargets(r), WithRecorder(idx), WithAutosave(true)).Propagate(ctx)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if res.RunID == 0 {
		t.Fatalf("run not recorded")
	}
	if a.Dirty() {
		t.Fatalf("autosave left scene dirty")
	}
	h, err := storage.OpenScene(a.Path())
	if err != nil {
		t.Fatalf("OpenScene: %v", err)
	}
	if h.Scene.Settings != st.Mirror() {
		t.Fatalf("saved file not updated: %+v", h.Scene.Settings)
	}
	got, _, ok, err := idx.SceneSettings(ctx, a.ID())
	if err != nil || !ok || got != st.Mirror() {
		t.Fatalf("index row mismatch: %+v ok=%v err=%v", got, ok, err)
	}
	runs, err := idx.Runs(ctx, 1)
	if err != nil || len(runs) != 1 || len(runs[0].Applied) != 2 {
		t.Fatalf("Runs = %+v, %v", runs, err)
	}
}

func TestPropagateReportsFailedAutosaveAsUnsaved(t *testing.T) {
	dir := t.TempDir()
	st := newStore(t, false)
	r, a, b := twoScenes(t, dir)
	// a directory where A's file should be makes its save fail
	if err := os.Remove(a.Path()); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(a.Path(), 0o755); err != nil {
		t.Fatal(err)
	}
	idx, err := storage.OpenIndex(dir)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	res, err := New(st, RegistryTargets(r), WithRecorder(idx), WithAutosave(true)).Propagate(ctx)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if len(res.Applied) != 2 {
		t.Fatalf("Applied = %v, want both scenes", res.Applied)
	}
	if ids := res.UnsavedIDs(); len(ids) != 1 || ids[0] != a.ID() {
		t.Fatalf("Unsaved = %v", ids)
	}
	if a.Settings() != st.Mirror() || !a.Dirty() {
		t.Fatalf("A should hold the new settings in memory and stay dirty")
	}
	if b.Dirty() {
		t.Fatalf("B should have been saved")
	}
	if got, _, ok, err := idx.SceneSettings(ctx, a.ID()); err != nil || !ok || got != st.Mirror() {
		t.Fatalf("applied settings of A not recorded: %+v ok=%v err=%v", got, ok, err)
	}
}
