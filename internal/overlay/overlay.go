/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package overlay is the renderer's view of the preferences: which settings
// record applies to a scene and whether the overlay is running.
package overlay

import (
	"errors"
	"log/slog"

	"selectedbounds/internal/domain"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/prefs"
)

// ErrAlreadyRunning is returned by Start when the overlay is already active.
var ErrAlreadyRunning = errors.New("overlay already running")

// Preferences is the part of the store the renderer reads.
type Preferences interface {
	Running() bool
	SceneIndependent() bool
	Mirror() domain.SceneSettings
}

// SettingsOwner is a scene with its own settings record.
type SettingsOwner interface {
	Settings() domain.SceneSettings
}

// Effective returns the settings the renderer uses for doc. With
// scene_independent set each scene keeps its own record; otherwise the
// global preferences apply directly.
func Effective(p Preferences, doc SettingsOwner) domain.SceneSettings {
	if p.SceneIndependent() && doc != nil {
		return doc.Settings()
	}
	return p.Mirror()
}

// ShouldDraw reports whether anything is drawn for doc: the overlay must be
// running and the effective mode must not be NONE.
func ShouldDraw(p Preferences, doc SettingsOwner) bool {
	return p.Running() && Effective(p, doc).Mode != domain.ModeNone
}

// Controller starts and stops the overlay. It holds the only capability that
// may change the running flag.
type Controller struct {
	lc  *prefs.Lifecycle
	log *slog.Logger
}

func NewController(lc *prefs.Lifecycle) *Controller {
	return &Controller{lc: lc, log: applog.WithComponent("overlay")}
}

func (c *Controller) Running() bool { return c.lc.Running() }

// Start marks the overlay running.
func (c *Controller) Start() error {
	if c.lc.Running() {
		return ErrAlreadyRunning
	}
	c.lc.SetRunning(true)
	c.log.Debug("overlay started")
	return nil
}

// Stop marks the overlay stopped. Stopping a stopped overlay is a no-op.
func (c *Controller) Stop() {
	if !c.lc.Running() {
		return
	}
	c.lc.SetRunning(false)
	c.log.Debug("overlay stopped")
}
