/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the preference and scene settings model shared by
// the store, the propagation service, the defaults persister and the overlay.
package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Mode selects which objects the overlay draws bounds around.
type Mode string

const (
	ModeNone     Mode = "NONE"
	ModeSelected Mode = "SELECTED"
	ModeActive   Mode = "ACTIVE"
)

// Modes lists the valid display modes in presentation order.
var Modes = []Mode{ModeNone, ModeSelected, ModeActive}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return slices.Contains(Modes, m)
}

// Label is the human-facing name of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeNone:
		return "None"
	case ModeSelected:
		return "Selected Objects"
	case ModeActive:
		return "Active Object"
	default:
		return string(m)
	}
}

// ParseMode accepts a mode identifier in any letter case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", &ValidationError{Field: FieldMode, Value: s, Reason: modeReason()}
	}
	return m, nil
}

func modeReason() string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return "must be one of " + strings.Join(names, ", ")
}

// Color is an RGBA tuple with each component in [0,1].
type Color [4]float64

// Valid reports whether every component is within [0,1].
func (c Color) Valid() bool {
	for _, v := range c {
		// NaN fails both comparisons
		if !(v >= 0 && v <= 1) {
			return false
		}
	}
	return true
}

// Clamped returns c with each component clamped into [0,1]; NaN becomes 0.
func (c Color) Clamped() Color {
	for i, v := range c {
		switch {
		case v > 1:
			c[i] = 1
		case v >= 0:
		default:
			c[i] = 0
		}
	}
	return c
}

func (c Color) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", c[0], c[1], c[2], c[3])
}

// Field names, shared by the store, the defaults artifact and the config file.
const (
	FieldRunning            = "running"
	FieldMode               = "mode"
	FieldColor              = "color"
	FieldUseObjectColor     = "use_object_color"
	FieldWidth              = "width"
	FieldLength             = "length"
	FieldSceneIndependent   = "scene_independent"
	FieldDisplayPreferences = "display_preferences"
)

// Inclusive ranges for the integer fields.
const (
	MinWidth  = 1
	MaxWidth  = 20
	MinLength = 10
	MaxLength = 100
)

// SceneSettings is the per-document settings record. It mirrors the five
// display fields of Preferences.
type SceneSettings struct {
	Mode           Mode  `json:"mode" yaml:"mode"`
	Color          Color `json:"color" yaml:"color,flow"`
	UseObjectColor bool  `json:"use_object_color" yaml:"use_object_color"`
	Width          int   `json:"width" yaml:"width"`
	Length         int   `json:"length" yaml:"length"`
}

// Validate returns a *ValidationError for the first field out of range.
func (s SceneSettings) Validate() error {
	if !s.Mode.Valid() {
		return &ValidationError{Field: FieldMode, Value: s.Mode, Reason: modeReason()}
	}
	if !s.Color.Valid() {
		return &ValidationError{Field: FieldColor, Value: s.Color, Reason: "components must be within [0,1]"}
	}
	if err := CheckWidth(s.Width); err != nil {
		return err
	}
	return CheckLength(s.Length)
}

// CheckWidth validates a pixel width.
func CheckWidth(v int) error {
	if v < MinWidth || v > MaxWidth {
		return &ValidationError{Field: FieldWidth, Value: v, Reason: fmt.Sprintf("must be within [%d,%d]", MinWidth, MaxWidth)}
	}
	return nil
}

// CheckLength validates a corner line length percentage.
func CheckLength(v int) error {
	if v < MinLength || v > MaxLength {
		return &ValidationError{Field: FieldLength, Value: v, Reason: fmt.Sprintf("must be within [%d,%d]", MinLength, MaxLength)}
	}
	return nil
}

// Preferences is the full set of overlay preferences. Running is internal
// state and is never persisted.
type Preferences struct {
	Running            bool  `json:"-" yaml:"-"`
	Mode               Mode  `json:"mode" yaml:"mode"`
	Color              Color `json:"color" yaml:"color,flow"`
	UseObjectColor     bool  `json:"use_object_color" yaml:"use_object_color"`
	Width              int   `json:"width" yaml:"width"`
	Length             int   `json:"length" yaml:"length"`
	SceneIndependent   bool  `json:"scene_independent" yaml:"scene_independent"`
	DisplayPreferences bool  `json:"display_preferences" yaml:"display_preferences"`
}

// Mirror extracts the fields that scenes copy.
func (p Preferences) Mirror() SceneSettings {
	return SceneSettings{
		Mode:           p.Mode,
		Color:          p.Color,
		UseObjectColor: p.UseObjectColor,
		Width:          p.Width,
		Length:         p.Length,
	}
}

// Validate checks every constrained field.
func (p Preferences) Validate() error {
	return p.Mirror().Validate()
}

// Clamped returns a copy with width, length and color forced into range.
// Mode is left alone; an unknown mode still fails Validate.
func (p Preferences) Clamped() Preferences {
	p.Width = clampInt(p.Width, MinWidth, MaxWidth)
	p.Length = clampInt(p.Length, MinLength, MaxLength)
	p.Color = p.Color.Clamped()
	return p
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Scene is an open unit of work with its own settings record.
type Scene struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Settings SceneSettings `json:"selected_bounds"`
	Notes    string        `json:"notes,omitempty"`
}
