/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package commands is the named command surface of the overlay preferences.
// Commands never fail fatally; every outcome is reported as a Status.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"selectedbounds/internal/defaults"
	"selectedbounds/internal/domain"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/prefs"
	"selectedbounds/internal/propagate"
	"selectedbounds/internal/telemetry"
)

// Command names.
const (
	UpdateSettings = "update_settings"
	SaveDefaults   = "save_defaults"
	Undo           = "undo"
	Redo           = "redo"
	ResetDefaults  = "reset_defaults"
)

type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Status is what the user sees after a command.
type Status struct {
	Level   Level
	Message string
}

func (s Status) String() string { return fmt.Sprintf("%s: %s", s.Level, s.Message) }

func (s Status) OK() bool { return s.Level != LevelError }

type command struct {
	enabled func() bool
	run     func(ctx context.Context) Status
}

// Dispatcher runs commands against one preference store.
type Dispatcher struct {
	store     *prefs.Store
	prop      *propagate.Service
	persister *defaults.Persister
	events    telemetry.Sink
	log       *slog.Logger
	cmds      map[string]command
}

// NewDispatcher wires the commands. events may be nil.
func NewDispatcher(store *prefs.Store, prop *propagate.Service, persister *defaults.Persister, events telemetry.Sink) *Dispatcher {
	if events == nil {
		events = telemetry.Nop{}
	}
	d := &Dispatcher{
		store:     store,
		prop:      prop,
		persister: persister,
		events:    events,
		log:       applog.WithComponent("commands"),
	}
	always := func() bool { return true }
	d.cmds = map[string]command{
		UpdateSettings: {enabled: func() bool { return !store.SceneIndependent() }, run: d.updateSettings},
		SaveDefaults:   {enabled: always, run: d.saveDefaults},
		Undo:           {enabled: store.CanUndo, run: d.undo},
		Redo:           {enabled: store.CanRedo, run: d.redo},
		ResetDefaults:  {enabled: always, run: d.resetDefaults},
	}
	return d
}

// Names lists the known commands in sorted order.
func (d *Dispatcher) Names() []string {
	out := make([]string, 0, len(d.cmds))
	for n := range d.cmds {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Enabled reports whether name can run now. Unknown names are disabled.
func (d *Dispatcher) Enabled(name string) bool {
	c, ok := d.cmds[name]
	return ok && c.enabled()
}

// Run executes the named command.
func (d *Dispatcher) Run(ctx context.Context, name string) Status {
	ctx = applog.WithCommand(ctx, name)
	c, ok := d.cmds[name]
	if !ok {
		return Status{Level: LevelError, Message: fmt.Sprintf("unknown command %q", name)}
	}
	if !c.enabled() {
		st := Status{Level: LevelWarning, Message: disabledReason(name)}
		d.log.InfoContext(ctx, "command disabled")
		return st
	}
	st := c.run(ctx)
	d.log.InfoContext(ctx, "command finished", slog.String("level", string(st.Level)))
	d.events.Event("command", map[string]any{"name": name, "level": string(st.Level)})
	return st
}

func disabledReason(name string) string {
	switch name {
	case UpdateSettings:
		return "update_settings is disabled while scene_independent is on"
	case Undo:
		return "nothing to undo"
	case Redo:
		return "nothing to redo"
	}
	return name + " is disabled"
}

func (d *Dispatcher) updateSettings(ctx context.Context) Status {
	res, err := d.prop.Propagate(ctx)
	var pf *domain.PropagationPartialFailure
	switch {
	case err == nil && res.NotApplicable:
		return Status{Level: LevelInfo, Message: "scenes keep their own settings"}
	case err == nil && len(res.Unsaved) == 0:
		return Status{Level: LevelInfo, Message: fmt.Sprintf("updated %d scene(s)", len(res.Applied))}
	case err == nil:
		return Status{Level: LevelWarning, Message: fmt.Sprintf("updated %d scene(s)%s", len(res.Applied), unsavedNote(res))}
	case errors.As(err, &pf):
		return Status{Level: LevelWarning, Message: fmt.Sprintf("updated %d scene(s); not updated: %s%s", len(res.Applied), strings.Join(pf.IDs(), ", "), unsavedNote(res))}
	default:
		d.log.ErrorContext(ctx, "propagation failed", slog.Any("err", err))
		return Status{Level: LevelError, Message: err.Error()}
	}
}

func unsavedNote(res propagate.Result) string {
	if len(res.Unsaved) == 0 {
		return ""
	}
	return "; not saved: " + strings.Join(res.UnsavedIDs(), ", ")
}

func (d *Dispatcher) saveDefaults(ctx context.Context) Status {
	if err := d.persister.SaveDefaults(d.store.Snapshot()); err != nil {
		d.log.ErrorContext(ctx, "save defaults failed", slog.Any("err", err))
		return Status{Level: LevelError, Message: "could not save defaults: " + err.Error()}
	}
	d.events.Event("defaults_saved", nil)
	return Status{Level: LevelInfo, Message: "defaults saved to " + d.persister.Path}
}

func (d *Dispatcher) undo(ctx context.Context) Status {
	return d.step(ctx, "undo", d.store.Undo)
}

func (d *Dispatcher) redo(ctx context.Context) Status {
	return d.step(ctx, "redo", d.store.Redo)
}

func (d *Dispatcher) step(ctx context.Context, verb string, move func() (bool, error)) Status {
	ok, err := move()
	if err != nil {
		d.log.ErrorContext(ctx, verb+" failed", slog.Any("err", err))
		return Status{Level: LevelError, Message: verb + " failed: " + err.Error()}
	}
	if !ok {
		return Status{Level: LevelInfo, Message: "nothing to " + verb}
	}
	return Status{Level: LevelInfo, Message: verb + " done"}
}

func (d *Dispatcher) resetDefaults(ctx context.Context) Status {
	a, src := d.persister.LoadDefaults()
	if err := d.store.Replace(a.Preferences()); err != nil {
		d.log.ErrorContext(ctx, "reset defaults failed", slog.Any("err", err))
		return Status{Level: LevelError, Message: err.Error()}
	}
	return Status{Level: LevelInfo, Message: fmt.Sprintf("preferences reset from %s defaults", src)}
}
