/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package prefs

import (
	"errors"
	"testing"

	"selectedbounds/internal/domain"
	"selectedbounds/internal/undo"
)

func testPrefs() domain.Preferences {
	return domain.Preferences{
		Mode:   domain.ModeSelected,
		Color:  domain.Color{1, 0.5, 0, 1},
		Width:  2,
		Length: 25,
	}
}

func newTestStore(t *testing.T) (*Store, *Lifecycle) {
	t.Helper()
	s, lc, err := NewStore(testPrefs())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	return s, lc
}

func TestNewStoreRejectsInvalidInitial(t *testing.T) {
	p := testPrefs()
	p.Width = 0
	if _, _, err := NewStore(p); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewStoreNeverStartsRunning(t *testing.T) {
	p := testPrefs()
	p.Running = true
	s, _, err := NewStore(p)
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	if s.Running() {
		t.Fatalf("new store must not be running")
	}
}

func TestSettersRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("setter error: %v", err)
		}
	}
	must(s.SetMode(domain.ModeActive))
	must(s.SetColor(domain.Color{0, 1, 0, 0.5}))
	must(s.SetUseObjectColor(true))
	must(s.SetWidth(20))
	must(s.SetLength(10))
	must(s.SetSceneIndependent(true))
	must(s.SetDisplayPreferences(true))

	if s.Mode() != domain.ModeActive || s.Color() != (domain.Color{0, 1, 0, 0.5}) || !s.UseObjectColor() {
		t.Fatalf("display fields not stored: %+v", s.Snapshot())
	}
	if s.Width() != 20 || s.Length() != 10 || !s.SceneIndependent() || !s.DisplayPreferences() {
		t.Fatalf("numeric/flag fields not stored: %+v", s.Snapshot())
	}
}

func TestOutOfRangeRejectedAndNotStored(t *testing.T) {
	s, _ := newTestStore(t)
	for _, w := range []int{0, -3, 21, 1000} {
		if err := s.SetWidth(w); !domain.IsValidation(err) {
			t.Fatalf("SetWidth(%d) expected validation error, got %v", w, err)
		}
	}
	for _, l := range []int{9, 0, 101} {
		if err := s.SetLength(l); !domain.IsValidation(err) {
			t.Fatalf("SetLength(%d) expected validation error, got %v", l, err)
		}
	}
	if err := s.SetColor(domain.Color{1.2, 0, 0, 1}); !domain.IsValidation(err) {
		t.Fatalf("SetColor out of range expected validation error, got %v", err)
	}
	if err := s.SetMode("ALL"); !domain.IsValidation(err) {
		t.Fatalf("SetMode unknown expected validation error, got %v", err)
	}
	if got := s.Snapshot(); got != testPrefs() {
		t.Fatalf("store changed after rejected writes: %+v", got)
	}
}

func TestSetByName(t *testing.T) {
	s, _ := newTestStore(t)
	cases := []struct{ field, raw string }{
		{"mode", "active"},
		{"color", "(1, 0, 0, 1)"},
		{"use_object_color", "yes"},
		{"width", "7"},
		{"length", "40%"},
		{"scene_independent", "on"},
		{"display_preferences", "true"},
	}
	for _, c := range cases {
		if err := s.Set(c.field, c.raw); err != nil {
			t.Fatalf("Set(%q, %q) error: %v", c.field, c.raw, err)
		}
	}
	want := domain.Preferences{
		Mode: domain.ModeActive, Color: domain.Color{1, 0, 0, 1}, UseObjectColor: true,
		Width: 7, Length: 40, SceneIndependent: true, DisplayPreferences: true,
	}
	if got := s.Snapshot(); got != want {
		t.Fatalf("Snapshot() = %+v, want %+v", got, want)
	}
	if v, _ := s.Value("color"); v != "1,0,0,1" {
		t.Fatalf("Value(color) = %q", v)
	}
}

func TestSetRejectsRunningAndUnknown(t *testing.T) {
	s, _ := newTestStore(t)
	var ve *domain.ValidationError
	if err := s.Set("running", "true"); !errors.As(err, &ve) || ve.Field != domain.FieldRunning {
		t.Fatalf("running must not be user-editable, got %v", err)
	}
	if s.Running() {
		t.Fatalf("running changed through Set")
	}
	if err := s.Set("opacity", "1"); !domain.IsValidation(err) {
		t.Fatalf("unknown field expected validation error, got %v", err)
	}
	if err := s.Set("width", "wide"); !domain.IsValidation(err) {
		t.Fatalf("non-integer width expected validation error, got %v", err)
	}
}

func TestLifecycleControlsRunning(t *testing.T) {
	s, lc := newTestStore(t)
	lc.SetRunning(true)
	if !s.Running() || !lc.Running() {
		t.Fatalf("running not set via lifecycle")
	}
	if s.CanUndo() {
		t.Fatalf("running changes must not enter edit history")
	}
}

func TestUndoRedo(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetWidth(5); err != nil {
		t.Fatalf("SetWidth error: %v", err)
	}
	if err := s.SetLength(60); err != nil {
		t.Fatalf("SetLength error: %v", err)
	}
	if ok, err := s.Undo(); !ok || err != nil {
		t.Fatalf("Undo() = %v, %v", ok, err)
	}
	if s.Length() != 25 || s.Width() != 5 {
		t.Fatalf("after one undo: width=%d length=%d", s.Width(), s.Length())
	}
	if ok, err := s.Undo(); !ok || err != nil {
		t.Fatalf("second Undo() = %v, %v", ok, err)
	}
	if s.Snapshot() != testPrefs() {
		t.Fatalf("after two undos: %+v", s.Snapshot())
	}
	if ok, _ := s.Undo(); ok {
		t.Fatalf("undo past the beginning should report false")
	}
	if ok, err := s.Redo(); !ok || err != nil || s.Width() != 5 {
		t.Fatalf("Redo() = %v, %v width=%d", ok, err, s.Width())
	}
}

func TestHistoryBoundedByInjectedManager(t *testing.T) {
	s, _, err := NewStore(testPrefs(), WithHistory(undo.NewManager(undo.Config{MaxPerScope: 2})))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for _, w := range []int{3, 4, 5} {
		if err := s.SetWidth(w); err != nil {
			t.Fatalf("SetWidth(%d): %v", w, err)
		}
	}
	steps, size := s.HistorySize()
	if steps != 2 || size == 0 {
		t.Fatalf("HistorySize = %d steps, %d bytes", steps, size)
	}
	_, _ = s.Undo()
	_, _ = s.Undo()
	if ok, _ := s.Undo(); ok || s.Width() != 3 {
		t.Fatalf("expected history capped at two steps, width=%d", s.Width())
	}
}

func TestNoOpSetDoesNotRecordHistory(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetWidth(2); err != nil {
		t.Fatalf("SetWidth error: %v", err)
	}
	if s.CanUndo() {
		t.Fatalf("setting the current value should not create history")
	}
}

func TestReplaceKeepsRunning(t *testing.T) {
	s, lc := newTestStore(t)
	lc.SetRunning(true)
	next := testPrefs()
	next.Mode = domain.ModeNone
	if err := s.Replace(next); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	if !s.Running() || s.Mode() != domain.ModeNone {
		t.Fatalf("Replace result: %+v", s.Snapshot())
	}
	bad := next
	bad.Length = 200
	if err := s.Replace(bad); !domain.IsValidation(err) {
		t.Fatalf("Replace invalid expected validation error, got %v", err)
	}
}

func TestParseColorForms(t *testing.T) {
	c, err := ParseColor("#ff000080")
	if err != nil {
		t.Fatalf("hex parse error: %v", err)
	}
	if c[0] != 1 || c[1] != 0 || c[3] != float64(0x80)/255 {
		t.Fatalf("hex color = %v", c)
	}
	c, err = ParseColor("[0, 0, 1]")
	if err != nil || c != (domain.Color{0, 0, 1, 1}) {
		t.Fatalf("three-component color = %v, %v", c, err)
	}
	if _, err := ParseColor("1,2"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for two components")
	}
}
