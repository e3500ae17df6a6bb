/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report and a last-chance copy of the
// in-memory preferences.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"selectedbounds/internal/defaults"
	"selectedbounds/internal/domain"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/storage"
	"selectedbounds/internal/telemetry"
	"selectedbounds/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Target describes what to save when the process panics. Dir is where the
// report and autosave go (under Dir/backups); Snapshot returns the current
// preferences and may be nil.
type Target struct {
	Dir      string
	Snapshot func() domain.Preferences
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and autosaves the preferences (if provided).
//
// Usage: defer crash.Recover(t)
func Recover(t *Target) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, _ := writeReport(t, r, stack)
		if t != nil && t.Snapshot != nil {
			if path, err := autosave(t); err != nil {
				l.Error("autosave preferences failed", slog.Any("err", err))
			} else {
				l.Info("autosave preferences written", slog.String("path", path))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

func reportDir(t *Target) string {
	if t != nil && t.Dir != "" {
		dir := filepath.Join(t.Dir, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
		return dir
	}
	return os.TempDir()
}

// autosave writes the preferences in the defaults artifact format so that
// the file can be copied over defaults.yaml to restore them.
func autosave(t *Target) (string, error) {
	now := time.Now()
	data, err := defaults.FromPreferences(t.Snapshot()).Marshal(now)
	if err != nil {
		return "", err
	}
	path := filepath.Join(reportDir(t), fmt.Sprintf("preferences-crash-%s.yaml", now.Format("20060102-150405")))
	return path, storage.WriteAtomic(path, data, storage.WriteOptions{})
}

func writeReport(t *Target, panicVal any, stack []byte) (string, error) {
	dir := reportDir(t)
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Selected Bounds Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// optionally upload the crash report (opt-in)
	telemetry.Default().UploadCrash(buf.Bytes())
	return path, nil
}
