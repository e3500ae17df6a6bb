/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"selectedbounds/internal/domain"
)

// SceneFileSuffix marks scene documents inside a workspace directory.
const SceneFileSuffix = ".scene.json"

// SceneHandle is a scene document loaded from or saved to disk.
type SceneHandle struct {
	Path  string
	Scene domain.Scene
}

// ScenePath returns the file path for a scene called name inside dir.
func ScenePath(dir, name string) string {
	return filepath.Join(dir, sanitizeName(name)+SceneFileSuffix)
}

// CreateScene writes a new scene document with a fresh id and the given settings.
// It fails if a document with the same name already exists.
func CreateScene(dir, name string, settings domain.SceneSettings) (*SceneHandle, error) {
	if sanitizeName(name) == "" {
		return nil, errors.New("scene name is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	path := ScenePath(dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("scene %q already exists at %s", name, path)
	}
	h := &SceneHandle{
		Path:  path,
		Scene: domain.Scene{ID: uuid.NewString(), Name: name, Settings: settings},
	}
	if err := SaveScene(h); err != nil {
		return nil, err
	}
	return h, nil
}

// OpenScene loads a scene document. If the file cannot be read or parsed, the newest readable backup is used.
func OpenScene(path string) (*SceneHandle, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		sc, berr := openSceneFromBackups(path)
		if berr != nil {
			return nil, fmt.Errorf("open scene: %w; backup attempt: %v", err, berr)
		}
		return &SceneHandle{Path: path, Scene: *sc}, nil
	}
	sc, perr := decodeScene(b)
	if perr != nil {
		sc, berr := openSceneFromBackups(path)
		if berr != nil {
			return nil, fmt.Errorf("parse scene: %w; backup attempt: %v", perr, berr)
		}
		return &SceneHandle{Path: path, Scene: *sc}, nil
	}
	return &SceneHandle{Path: path, Scene: *sc}, nil
}

// SaveScene writes the scene document transactionally, keeping a few backups.
func SaveScene(h *SceneHandle) error {
	if h == nil {
		return errors.New("nil SceneHandle")
	}
	if h.Path == "" {
		return errors.New("invalid SceneHandle: missing path")
	}
	if h.Scene.ID == "" {
		h.Scene.ID = uuid.NewString()
	}
	data, err := json.MarshalIndent(h.Scene, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scene: %w", err)
	}
	data = append(data, '\n')
	return WriteAtomic(h.Path, data, WriteOptions{Backup: true, KeepBackups: 5})
}

// ListScenes returns the scene document paths in dir, sorted by name.
func ListScenes(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.HasSuffix(e.Name(), SceneFileSuffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func decodeScene(b []byte) (*domain.Scene, error) {
	var sc domain.Scene
	if err := json.Unmarshal(b, &sc); err != nil {
		return nil, err
	}
	if sc.ID == "" {
		return nil, errors.New("scene id missing")
	}
	return &sc, nil
}

// openSceneFromBackups tries the backups of path from newest to oldest and
// returns the first one that decodes.
func openSceneFromBackups(path string) (*domain.Scene, error) {
	candidates, err := Backups(path)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	var errs []error
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("read backup %s: %w", filepath.Base(candidates[i]), err))
			continue
		}
		sc, err := decodeScene(b)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse backup %s: %w", filepath.Base(candidates[i]), err))
			continue
		}
		return sc, nil
	}
	return nil, errors.Join(errs...)
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimLeft(strings.TrimSpace(name), "."))
}
