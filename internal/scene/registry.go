/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene tracks the documents currently open in the host. Each
// document owns exactly one settings record; other packages may update the
// record but never create or destroy documents.
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"selectedbounds/internal/domain"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/storage"
)

var (
	// ErrClosed is returned when a closed document is updated.
	ErrClosed = errors.New("scene is closed")
	// ErrNotFound is returned for unknown scene ids.
	ErrNotFound = errors.New("scene not found")
)

// Document is one open scene.
type Document struct {
	mu     sync.Mutex
	h      storage.SceneHandle
	dirty  bool
	closed bool
}

// NewDocument wraps an in-memory scene. It has no file until SaveAs.
func NewDocument(sc domain.Scene) *Document {
	return &Document{h: storage.SceneHandle{Scene: sc}}
}

func (d *Document) ID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.h.Scene.ID
}

func (d *Document) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.h.Scene.Name
}

func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.h.Path
}

// Settings returns a copy of the document's settings record.
func (d *Document) Settings() domain.SceneSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.h.Scene.Settings
}

// Dirty reports unsaved changes.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// ApplySettings overwrites the settings record.
func (d *Document) ApplySettings(s domain.SceneSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.h.Scene.Settings != s {
		d.h.Scene.Settings = s
		d.dirty = true
	}
	return nil
}

// Save writes the document if it has a path and unsaved changes.
func (d *Document) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if !d.dirty || d.h.Path == "" {
		return nil
	}
	if err := storage.SaveScene(&d.h); err != nil {
		return err
	}
	d.dirty = false
	return nil
}

// SaveAs binds the document to path and writes it.
func (d *Document) SaveAs(path string) error {
	d.mu.Lock()
	d.h.Path = path
	d.dirty = true
	d.mu.Unlock()
	return d.Save()
}

func (d *Document) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Registry is the set of open documents.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]*Document
	log  *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]*Document), log: applog.WithComponent("scene")}
}

// Add registers an open document. Ids must be unique.
func (r *Registry) Add(d *Document) error {
	id := d.ID()
	if id == "" {
		return errors.New("scene id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; ok {
		return fmt.Errorf("scene %s already open", id)
	}
	r.docs[id] = d
	return nil
}

// Open loads a scene file and registers it.
func (r *Registry) Open(path string) (*Document, error) {
	h, err := storage.OpenScene(path)
	if err != nil {
		return nil, err
	}
	d := &Document{h: *h}
	if err := r.Add(d); err != nil {
		return nil, err
	}
	r.log.Debug("scene opened", slog.String("id", d.ID()), slog.String("path", path))
	return d, nil
}

// Create writes a new scene file in dir and registers it.
func (r *Registry) Create(dir, name string, s domain.SceneSettings) (*Document, error) {
	h, err := storage.CreateScene(dir, name, s)
	if err != nil {
		return nil, err
	}
	d := &Document{h: *h}
	if err := r.Add(d); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenWorkspace opens every scene file in dir. Unreadable files are skipped and
// reported in the joined error; the readable ones stay open.
func (r *Registry) OpenWorkspace(dir string) ([]*Document, error) {
	paths, err := storage.ListScenes(dir)
	if err != nil {
		return nil, err
	}
	var (
		opened []*Document
		errs   []error
	)
	for _, p := range paths {
		d, err := r.Open(p)
		if err != nil {
			r.log.Warn("skipping scene", slog.String("path", p), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		opened = append(opened, d)
	}
	return opened, errors.Join(errs...)
}

// Get returns an open document.
func (r *Registry) Get(id string) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	return d, ok
}

// Close unregisters a document. Later updates through stale references fail with ErrClosed.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	d, ok := r.docs[id]
	delete(r.docs, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d.close()
	return nil
}

// Documents returns the open documents ordered by name, then id.
func (r *Registry) Documents() []*Document {
	r.mu.RLock()
	out := make([]*Document, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		ni, nj := out[i].Name(), out[j].Name()
		if ni != nj {
			return ni < nj
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Len returns the number of open documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// SaveDirty writes every document with unsaved changes.
func (r *Registry) SaveDirty() error {
	var errs []error
	for _, d := range r.Documents() {
		if err := d.Save(); err != nil {
			errs = append(errs, fmt.Errorf("save scene %s: %w", d.ID(), err))
		}
	}
	return errors.Join(errs...)
}
