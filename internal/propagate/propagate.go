/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package propagate copies the preference mirror into the settings record of
// every open scene.
package propagate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"selectedbounds/internal/domain"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/scene"
	"selectedbounds/internal/storage"
	"selectedbounds/internal/telemetry"
)

// Source supplies the values to propagate.
type Source interface {
	SceneIndependent() bool
	Mirror() domain.SceneSettings
}

// Target is one open document owning a settings record.
type Target interface {
	ID() string
	ApplySettings(domain.SceneSettings) error
}

type named interface{ Name() string }

type saver interface{ Save() error }

// Recorder keeps a history of propagated settings. *storage.Index implements it.
type Recorder interface {
	RecordSceneSettings(ctx context.Context, sceneID, name string, s domain.SceneSettings) error
	RecordRun(ctx context.Context, r storage.Run) (int64, error)
}

// Result summarizes one Propagate call.
type Result struct {
	Applied       []string // sorted scene ids
	NotApplicable bool     // scene_independent was set; nothing touched
	RunID         int64    // id of the recorded run, 0 without a recorder
	// Unsaved holds applied scenes whose autosave failed, keyed by id. Their
	// settings record is updated in memory but not on disk.
	Unsaved map[string]error
}

// UnsavedIDs returns the keys of Unsaved in sorted order.
func (r Result) UnsavedIDs() []string {
	ids := make([]string, 0, len(r.Unsaved))
	for id := range r.Unsaved {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Option func(*Service)

// WithRecorder records every applied record and the run summary.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.rec = r } }

// WithEvents routes usage events to sink.
func WithEvents(sink telemetry.Sink) Option { return func(s *Service) { s.events = sink } }

// WithAutosave writes each updated document that can save itself.
func WithAutosave(on bool) Option { return func(s *Service) { s.autosave = on } }

// Service applies the preference mirror to all targets.
type Service struct {
	src      Source
	targets  func() []Target
	rec      Recorder
	events   telemetry.Sink
	autosave bool
	log      *slog.Logger
}

// New returns a service reading from src. targets is called on every run so
// scenes opened or closed in between are seen.
func New(src Source, targets func() []Target, opts ...Option) *Service {
	s := &Service{
		src:     src,
		targets: targets,
		events:  telemetry.Nop{},
		log:     applog.WithComponent("propagate"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RegistryTargets lists the registry's open documents as targets.
func RegistryTargets(r *scene.Registry) func() []Target {
	return func() []Target {
		docs := r.Documents()
		out := make([]Target, 0, len(docs))
		for _, d := range docs {
			out = append(out, d)
		}
		return out
	}
}

// Propagate writes the mirror into every target's settings record. When
// scene_independent is set it does nothing. A failing target does not stop
// the others; all failures come back as *domain.PropagationPartialFailure.
// A scene whose record was applied but whose autosave failed counts as
// applied and is listed in Result.Unsaved.
func (s *Service) Propagate(ctx context.Context) (Result, error) {
	l := applog.WithOperation(s.log, "update_settings")
	if s.src.SceneIndependent() {
		l.DebugContext(ctx, "scene independent, nothing to propagate")
		res := Result{NotApplicable: true}
		res.RunID = s.record(ctx, storage.Run{At: time.Now(), NotApplicable: true})
		return res, nil
	}

	mirror := s.src.Mirror()
	if err := mirror.Validate(); err != nil {
		return Result{}, fmt.Errorf("mirror: %w", err)
	}

	var res Result
	failures := map[string]error{}
	for _, t := range s.targets() {
		id := t.ID()
		if err := ctx.Err(); err != nil {
			failures[id] = err
			continue
		}
		tctx := applog.WithScene(ctx, id)
		if err := t.ApplySettings(mirror); err != nil {
			l.WarnContext(tctx, "scene not updated", slog.Any("err", err))
			failures[id] = err
			continue
		}
		res.Applied = append(res.Applied, id)
		if err := s.afterApply(tctx, t, mirror); err != nil {
			l.WarnContext(tctx, "scene updated but not saved", slog.Any("err", err))
			if res.Unsaved == nil {
				res.Unsaved = map[string]error{}
			}
			res.Unsaved[id] = err
		}
	}
	sort.Strings(res.Applied)

	run := storage.Run{At: time.Now(), Applied: res.Applied}
	for id := range failures {
		run.Failed = append(run.Failed, id)
	}
	sort.Strings(run.Failed)
	res.RunID = s.record(ctx, run)

	s.events.Event("settings_propagated", map[string]any{"applied": len(res.Applied), "failed": len(failures), "unsaved": len(res.Unsaved)})
	l.InfoContext(ctx, "settings propagated", slog.Int("applied", len(res.Applied)), slog.Int("failed", len(failures)), slog.Int("unsaved", len(res.Unsaved)))
	if len(failures) > 0 {
		return res, &domain.PropagationPartialFailure{Failures: failures}
	}
	return res, nil
}

// afterApply records the applied settings and, with autosave, writes the
// document. Only the save error is returned.
func (s *Service) afterApply(ctx context.Context, t Target, mirror domain.SceneSettings) error {
	if s.rec != nil {
		name := ""
		if n, ok := t.(named); ok {
			name = n.Name()
		}
		if err := s.rec.RecordSceneSettings(ctx, t.ID(), name, mirror); err != nil {
			s.log.WarnContext(ctx, "index record failed", slog.Any("err", err))
		}
	}
	if s.autosave {
		if sv, ok := t.(saver); ok {
			if err := sv.Save(); err != nil {
				return fmt.Errorf("save: %w", err)
			}
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, run storage.Run) int64 {
	if s.rec == nil {
		return 0
	}
	id, err := s.rec.RecordRun(ctx, run)
	if err != nil {
		s.log.WarnContext(ctx, "index run record failed", slog.Any("err", err))
		return 0
	}
	return id
}
