/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package defaults persists the current preferences as the defaults loaded at
// the next startup. The artifact is a small commented YAML mapping with seven
// keys; it is validated against an embedded JSON schema on both save and load
// and replaced atomically.
package defaults

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"selectedbounds/internal/domain"
)

//go:embed factory.yaml
var factoryYAML []byte

// Artifact is the on-disk defaults mapping. It never carries the running flag.
type Artifact struct {
	Mode               domain.Mode  `yaml:"mode"`
	Color              domain.Color `yaml:"color,flow"`
	UseObjectColor     bool         `yaml:"use_object_color"`
	Width              int          `yaml:"width"`
	Length             int          `yaml:"length"`
	SceneIndependent   bool         `yaml:"scene_independent"`
	DisplayPreferences bool         `yaml:"display_preferences"`
}

// FromPreferences snapshots the seven persisted fields of p.
func FromPreferences(p domain.Preferences) Artifact {
	return Artifact{
		Mode:               p.Mode,
		Color:              p.Color,
		UseObjectColor:     p.UseObjectColor,
		Width:              p.Width,
		Length:             p.Length,
		SceneIndependent:   p.SceneIndependent,
		DisplayPreferences: p.DisplayPreferences,
	}
}

// Preferences converts the artifact back into a (not running) preference set.
func (a Artifact) Preferences() domain.Preferences {
	return domain.Preferences{
		Mode:               a.Mode,
		Color:              a.Color,
		UseObjectColor:     a.UseObjectColor,
		Width:              a.Width,
		Length:             a.Length,
		SceneIndependent:   a.SceneIndependent,
		DisplayPreferences: a.DisplayPreferences,
	}
}

// Factory returns the defaults compiled into the binary.
func Factory() Artifact {
	a, err := Parse(factoryYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded factory defaults are invalid: %v", err))
	}
	return a
}

// Marshal renders the artifact as commented YAML.
func (a Artifact) Marshal(generatedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Generated by selectedbounds save_defaults at %s.\n", generatedAt.UTC().Format(time.RFC3339))
	buf.WriteString("# Read once at startup as the default preferences.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes and schema-validates artifact bytes.
func Parse(data []byte) (Artifact, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Artifact{}, fmt.Errorf("parse defaults: %w", err)
	}
	if err := validateDocument(doc); err != nil {
		return Artifact{}, err
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("decode defaults: %w", err)
	}
	return a, nil
}
