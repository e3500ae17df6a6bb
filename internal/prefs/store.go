/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package prefs holds the process-wide overlay preferences.
//
// A Store is constructed explicitly from the loaded defaults and passed to
// whatever needs it. Setters reject out-of-range values with a
// *domain.ValidationError and leave the stored value untouched. The running
// flag can only be changed through the Lifecycle returned by NewStore.
package prefs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"selectedbounds/internal/domain"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/undo"
)

// HistoryScope is the undo scope used for preference edits.
const HistoryScope = "preferences"

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	p       domain.Preferences
	history *undo.Manager
	now     func() time.Time
	log     *slog.Logger
}

// Lifecycle is the write capability for the running flag. Only the overlay
// controller should hold it.
type Lifecycle struct {
	s *Store
}

// Option configures a Store.
type Option func(*Store)

// WithHistory replaces the default undo manager.
func WithHistory(m *undo.Manager) Option {
	return func(s *Store) { s.history = m }
}

// NewStore validates initial and returns the store together with its lifecycle capability.
// initial.Running is ignored; a new store is never running.
func NewStore(initial domain.Preferences, opts ...Option) (*Store, *Lifecycle, error) {
	if err := initial.Validate(); err != nil {
		return nil, nil, err
	}
	initial.Running = false
	s := &Store{
		p:   initial,
		now: time.Now,
		log: applog.WithComponent("prefs"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.history == nil {
		s.history = undo.NewManager(undo.Config{MaxPerScope: 64})
	}
	return s, &Lifecycle{s: s}, nil
}

// Snapshot returns a copy of every field.
func (s *Store) Snapshot() domain.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p
}

func (s *Store) Running() bool                { return s.Snapshot().Running }
func (s *Store) Mode() domain.Mode            { return s.Snapshot().Mode }
func (s *Store) Color() domain.Color          { return s.Snapshot().Color }
func (s *Store) UseObjectColor() bool         { return s.Snapshot().UseObjectColor }
func (s *Store) Width() int                   { return s.Snapshot().Width }
func (s *Store) Length() int                  { return s.Snapshot().Length }
func (s *Store) SceneIndependent() bool       { return s.Snapshot().SceneIndependent }
func (s *Store) DisplayPreferences() bool     { return s.Snapshot().DisplayPreferences }
func (s *Store) Mirror() domain.SceneSettings { return s.Snapshot().Mirror() }

func (s *Store) SetMode(m domain.Mode) error {
	if !m.Valid() {
		return &domain.ValidationError{Field: domain.FieldMode, Value: m, Reason: "must be one of NONE, SELECTED, ACTIVE"}
	}
	return s.update(domain.FieldMode, func(p *domain.Preferences) { p.Mode = m })
}

func (s *Store) SetColor(c domain.Color) error {
	if !c.Valid() {
		return &domain.ValidationError{Field: domain.FieldColor, Value: c, Reason: "components must be within [0,1]"}
	}
	return s.update(domain.FieldColor, func(p *domain.Preferences) { p.Color = c })
}

func (s *Store) SetUseObjectColor(v bool) error {
	return s.update(domain.FieldUseObjectColor, func(p *domain.Preferences) { p.UseObjectColor = v })
}

func (s *Store) SetWidth(v int) error {
	if err := domain.CheckWidth(v); err != nil {
		return err
	}
	return s.update(domain.FieldWidth, func(p *domain.Preferences) { p.Width = v })
}

func (s *Store) SetLength(v int) error {
	if err := domain.CheckLength(v); err != nil {
		return err
	}
	return s.update(domain.FieldLength, func(p *domain.Preferences) { p.Length = v })
}

func (s *Store) SetSceneIndependent(v bool) error {
	return s.update(domain.FieldSceneIndependent, func(p *domain.Preferences) { p.SceneIndependent = v })
}

func (s *Store) SetDisplayPreferences(v bool) error {
	return s.update(domain.FieldDisplayPreferences, func(p *domain.Preferences) { p.DisplayPreferences = v })
}

// Replace validates p and swaps in all persisted fields at once. Running is kept.
func (s *Store) Replace(p domain.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.update("all", func(cur *domain.Preferences) {
		running := cur.Running
		*cur = p
		cur.Running = running
	})
}

// Undo restores the state before the last edit. It reports false when there is nothing to undo.
func (s *Store) Undo() (bool, error) {
	return s.step(s.history.Undo)
}

// Redo re-applies the last undone edit.
func (s *Store) Redo() (bool, error) {
	return s.step(s.history.Redo)
}

func (s *Store) CanUndo() bool { return s.history.CanUndo(HistoryScope) }

// HistorySize returns the number of undo steps held and their encoded size in bytes.
func (s *Store) HistorySize() (steps, bytes int) {
	bytes, _, steps = s.history.Stats()
	return steps, bytes
}
func (s *Store) CanRedo() bool { return s.history.CanRedo(HistoryScope) }

func (s *Store) step(move func(scope string, current []byte) (undo.Snapshot, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := json.Marshal(s.p)
	if err != nil {
		return false, fmt.Errorf("encode preferences: %w", err)
	}
	snap, ok := move(HistoryScope, cur)
	if !ok {
		return false, nil
	}
	var restored domain.Preferences
	if err := json.Unmarshal(snap.Blob, &restored); err != nil {
		return false, fmt.Errorf("decode preferences snapshot: %w", err)
	}
	restored.Running = s.p.Running
	s.p = restored
	return true, nil
}

func (s *Store) update(field string, apply func(p *domain.Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, err := json.Marshal(s.p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	next := s.p
	apply(&next)
	if next == s.p {
		return nil
	}
	s.history.Record(undo.Snapshot{Scope: HistoryScope, Blob: before, TS: s.now()})
	s.p = next
	s.log.Debug("preference changed", slog.String("field", field))
	return nil
}

// SetRunning flips the running flag. It bypasses history; running is not a user edit.
func (l *Lifecycle) SetRunning(v bool) {
	l.s.mu.Lock()
	l.s.p.Running = v
	l.s.mu.Unlock()
}

// Running mirrors Store.Running for holders of the capability.
func (l *Lifecycle) Running() bool { return l.s.Running() }
