/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"selectedbounds/internal/domain"
	"selectedbounds/internal/storage"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

// PreferencesConfig holds the user's current overlay preferences. Absent keys
// leave the saved defaults in place.
type PreferencesConfig struct {
	Mode               string    `yaml:"mode,omitempty"`
	Color              []float64 `yaml:"color,omitempty,flow"`
	UseObjectColor     *bool     `yaml:"use_object_color,omitempty"`
	Width              *int      `yaml:"width,omitempty"`
	Length             *int      `yaml:"length,omitempty"`
	SceneIndependent   *bool     `yaml:"scene_independent,omitempty"`
	DisplayPreferences *bool     `yaml:"display_preferences,omitempty"`
}

type PathsConfig struct {
	DefaultsFile string `yaml:"defaults_file"` // empty: next to the executable
	Workspace    string `yaml:"workspace"`     // directory holding *.scene.json
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type HistoryConfig struct {
	MaxSteps int `yaml:"max_steps"` // undo steps kept for preference edits
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type AppConfig struct {
	ConfigVersion int               `yaml:"config_version"`
	Preferences   PreferencesConfig `yaml:"preferences"`
	Paths         PathsConfig       `yaml:"paths"`
	History       HistoryConfig     `yaml:"history"`
	Logging       LoggingConfig     `yaml:"logging"`
	Telemetry     TelemetryConfig   `yaml:"telemetry"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Paths:         PathsConfig{DefaultsFile: "", Workspace: "."},
		History:       HistoryConfig{MaxSteps: 64},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
		Telemetry:     TelemetryConfig{OptIn: false, TimeoutMs: 1500},
	}
}

// Env var names used as overrides.
const (
	EnvDefaultsFile   = "SB_DEFAULTS_FILE"
	EnvWorkspace      = "SB_WORKSPACE"
	EnvTelemetryOptIn = "SB_TELEMETRY_OPT_IN"
	EnvTelemetryURL   = "SB_TELEMETRY_URL"
	EnvCrashURL       = "SB_CRASH_UPLOAD_URL"
	EnvConfigFile     = "SB_CONFIG"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SB_LOG_LEVEL"
	EnvLogFormat = "SB_LOG_FORMAT"
	EnvLogSource = "SB_LOG_SOURCE"
	EnvLogFile   = "SB_LOG_FILE"
)

// ConfigPath returns the per-user config file path. SB_CONFIG wins when set.
func ConfigPath() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigFile)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "SelectedBounds")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "SelectedBounds")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "selectedbounds")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "selectedbounds")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load for an explicit file. A missing file is not an error; a
// malformed one is reported together with the defaults.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	var ferr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			ferr = fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, ferr
}

// SaveTo writes the user config YAML to path.
func SaveTo(path string, cfg AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return storage.WriteAtomic(path, data, storage.WriteOptions{Perm: 0o600})
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.Preferences = src.Preferences
	if strings.TrimSpace(src.Paths.DefaultsFile) != "" {
		dst.Paths.DefaultsFile = strings.TrimSpace(src.Paths.DefaultsFile)
	}
	if strings.TrimSpace(src.Paths.Workspace) != "" {
		dst.Paths.Workspace = strings.TrimSpace(src.Paths.Workspace)
	}
	if src.History.MaxSteps > 0 {
		dst.History.MaxSteps = src.History.MaxSteps
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	// telemetry: booleans copied directly so an explicit opt-out persists
	dst.Telemetry.OptIn = src.Telemetry.OptIn
	if src.Telemetry.EventsURL != "" {
		dst.Telemetry.EventsURL = src.Telemetry.EventsURL
	}
	if src.Telemetry.CrashURL != "" {
		dst.Telemetry.CrashURL = src.Telemetry.CrashURL
	}
	if src.Telemetry.TimeoutMs > 0 {
		dst.Telemetry.TimeoutMs = src.Telemetry.TimeoutMs
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvDefaultsFile)); v != "" {
		cfg.Paths.DefaultsFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkspace)); v != "" {
		cfg.Paths.Workspace = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.Telemetry.OptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryURL)); v != "" {
		cfg.Telemetry.EventsURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCrashURL)); v != "" {
		cfg.Telemetry.CrashURL = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	var name string
	switch key {
	case "paths.defaults_file":
		name = EnvDefaultsFile
	case "paths.workspace":
		name = EnvWorkspace
	case "telemetry.opt_in":
		name = EnvTelemetryOptIn
	case "telemetry.events_url":
		name = EnvTelemetryURL
	case "telemetry.crash_url":
		name = EnvCrashURL
	case "logging.level":
		name = EnvLogLevel
	case "logging.format":
		name = EnvLogFormat
	case "logging.source":
		name = EnvLogSource
	case "logging.file":
		name = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(name) != "" {
		return name, true
	}
	return "", false
}

// Apply overlays the configured preferences on base. Out-of-range numbers
// from a hand-edited file are clamped and reported through clamped; an
// unknown mode or a malformed color is an error and base is returned.
func (pc PreferencesConfig) Apply(base domain.Preferences) (p domain.Preferences, clamped bool, err error) {
	p = base
	if pc.Mode != "" {
		m, err := domain.ParseMode(pc.Mode)
		if err != nil {
			return base, false, err
		}
		p.Mode = m
	}
	if pc.Color != nil {
		switch len(pc.Color) {
		case 3:
			p.Color = domain.Color{pc.Color[0], pc.Color[1], pc.Color[2], 1}
		case 4:
			p.Color = domain.Color{pc.Color[0], pc.Color[1], pc.Color[2], pc.Color[3]}
		default:
			return base, false, &domain.ValidationError{Field: domain.FieldColor, Value: pc.Color, Reason: "needs 3 or 4 components"}
		}
	}
	if pc.UseObjectColor != nil {
		p.UseObjectColor = *pc.UseObjectColor
	}
	if pc.Width != nil {
		p.Width = *pc.Width
	}
	if pc.Length != nil {
		p.Length = *pc.Length
	}
	if pc.SceneIndependent != nil {
		p.SceneIndependent = *pc.SceneIndependent
	}
	if pc.DisplayPreferences != nil {
		p.DisplayPreferences = *pc.DisplayPreferences
	}
	if fixed := p.Clamped(); fixed != p {
		p, clamped = fixed, true
	}
	if err := p.Validate(); err != nil {
		return base, false, err
	}
	return p, clamped, nil
}

// FromPreferences captures every persisted field of p.
func FromPreferences(p domain.Preferences) PreferencesConfig {
	c := append([]float64(nil), p.Color[:]...)
	return PreferencesConfig{
		Mode:               string(p.Mode),
		Color:              c,
		UseObjectColor:     &p.UseObjectColor,
		Width:              &p.Width,
		Length:             &p.Length,
		SceneIndependent:   &p.SceneIndependent,
		DisplayPreferences: &p.DisplayPreferences,
	}
}

// Timeout returns the telemetry request timeout.
func (t TelemetryConfig) Timeout() time.Duration {
	if t.TimeoutMs <= 0 {
		return time.Duration(Defaults().Telemetry.TimeoutMs) * time.Millisecond
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// Update applies mutate to the config stored at path and writes it back.
// Environment overrides are not applied, so they never leak into the file.
func Update(path string, mutate func(*AppConfig)) error {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	mutate(&cfg)
	return SaveTo(path, cfg)
}
