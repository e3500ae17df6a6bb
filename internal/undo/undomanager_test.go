/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestUndoRedoRoundTrip(t *testing.T) {
	m := NewManager(Config{MaxPerScope: 10})
	t0 := time.Now()
	m.Record(Snapshot{Scope: "preferences", Blob: []byte("a"), TS: t0})
	m.Record(Snapshot{Scope: "preferences", Blob: []byte("b"), TS: t0.Add(time.Second)})
	if _, scopes, total := m.Stats(); scopes != 1 || total != 2 {
		t.Fatalf("expected 1 scope and 2 snapshots, got scopes=%d total=%d", scopes, total)
	}
	s, ok := m.Undo("preferences", []byte("c"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if !m.CanRedo("preferences") {
		t.Fatalf("redo should be available after undo")
	}
	s, ok = m.Redo("preferences", []byte("b"))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestRecordDropsRedo(t *testing.T) {
	m := NewManager(Config{})
	m.Record(Snapshot{Scope: "s", Blob: []byte("1"), TS: time.Now()})
	m.Undo("s", []byte("2"))
	m.Record(Snapshot{Scope: "s", Blob: []byte("3"), TS: time.Now()})
	if m.CanRedo("s") {
		t.Fatalf("new record should invalidate redo")
	}
}

func TestCoalesceKeepsEarliest(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Record(Snapshot{Scope: "s", Blob: []byte("1"), TS: t0})
	m.Record(Snapshot{Scope: "s", Blob: []byte("2"), TS: t0.Add(10 * time.Millisecond)})
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo("s", []byte("3"))
	if !ok || string(s.Blob) != "1" {
		t.Fatalf("expected earliest snapshot '1', got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestPerScopeCap(t *testing.T) {
	m := NewManager(Config{MaxPerScope: 2})
	t0 := time.Now()
	for i, b := range []string{"1", "2", "3"} {
		m.Record(Snapshot{Scope: "s", Blob: []byte(b), TS: t0.Add(time.Duration(i) * time.Second)})
	}
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("expected depth cap of 2, got %d", total)
	}
}

func TestMemoryCapPrunesOldestAcrossScopes(t *testing.T) {
	m := NewManager(Config{MaxBytes: 4})
	t0 := time.Now()
	m.Record(Snapshot{Scope: "a", Blob: []byte("xx"), TS: t0})
	m.Record(Snapshot{Scope: "b", Blob: []byte("yy"), TS: t0.Add(time.Second)})
	m.Record(Snapshot{Scope: "b", Blob: []byte("zz"), TS: t0.Add(2 * time.Second)})
	if m.CanUndo("a") {
		t.Fatalf("oldest scope should have been pruned")
	}
	if bytes, _, _ := m.Stats(); bytes > 4 {
		t.Fatalf("total bytes %d exceeds cap", bytes)
	}
}
