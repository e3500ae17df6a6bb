/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" selected ")
	if err != nil || m != ModeSelected {
		t.Fatalf("ParseMode(selected) = %q, %v", m, err)
	}
	_, err = ParseMode("ALL")
	if !IsValidation(err) {
		t.Fatalf("expected validation error for unknown mode, got %v", err)
	}
	if !strings.Contains(err.Error(), "NONE, SELECTED, ACTIVE") {
		t.Fatalf("error does not list the modes: %v", err)
	}
	if ModeActive.Label() != "Active Object" || Mode("X").Label() != "X" {
		t.Fatalf("unexpected labels")
	}
}

func TestColorValidAndClamped(t *testing.T) {
	if !(Color{0, 0.5, 1, 1}).Valid() {
		t.Fatalf("in-range color reported invalid")
	}
	c := Color{-0.5, 2, math.NaN(), 0.25}
	if c.Valid() {
		t.Fatalf("out-of-range color reported valid")
	}
	if got, want := c.Clamped(), (Color{0, 1, 0, 0.25}); got != want {
		t.Fatalf("Clamped() = %v, want %v", got, want)
	}
}

func TestSceneSettingsValidateRanges(t *testing.T) {
	base := SceneSettings{Mode: ModeActive, Color: Color{1, 1, 1, 1}, Width: 1, Length: 100}
	if err := base.Validate(); err != nil {
		t.Fatalf("boundary values rejected: %v", err)
	}
	bad := base
	bad.Width = 21
	var ve *ValidationError
	if err := bad.Validate(); !errors.As(err, &ve) || ve.Field != FieldWidth {
		t.Fatalf("expected width validation error, got %v", err)
	}
	bad = base
	bad.Length = 9
	if err := bad.Validate(); !errors.As(err, &ve) || ve.Field != FieldLength {
		t.Fatalf("expected length validation error, got %v", err)
	}
}

func TestPreferencesClampedAndMirror(t *testing.T) {
	p := Preferences{Mode: ModeSelected, Color: Color{1, 0, 0, 1}, Width: 50, Length: 1, SceneIndependent: true}
	c := p.Clamped()
	if c.Width != MaxWidth || c.Length != MinLength {
		t.Fatalf("Clamped() width/length = %d/%d", c.Width, c.Length)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("clamped preferences invalid: %v", err)
	}
	m := c.Mirror()
	if m.Mode != ModeSelected || m.Color != c.Color || m.Width != MaxWidth || m.Length != MinLength {
		t.Fatalf("Mirror() mismatch: %+v", m)
	}
}

func TestPropagationPartialFailureIDsSorted(t *testing.T) {
	boom := errors.New("boom")
	e := &PropagationPartialFailure{Failures: map[string]error{"b": boom, "a": boom}}
	if ids := e.IDs(); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("IDs() = %v", ids)
	}
	if !errors.Is(e, boom) {
		t.Fatalf("partial failure should unwrap to per-scene errors")
	}
	if !strings.Contains(e.Error(), "2 scene(s)") {
		t.Fatalf("Error() = %q", e.Error())
	}
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	inner := errors.New("read-only file system")
	err := error(&PersistenceError{Op: "write", Path: "/x/defaults.yaml", Err: inner})
	if !errors.Is(err, inner) {
		t.Fatalf("PersistenceError should unwrap")
	}
}
