/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupsDirName is the folder next to a replaced file that keeps its previous versions.
const BackupsDirName = "backups"

const tempMarker = ".tmp-"

// beforeReplace runs after the temp file is durable and before it is renamed
// over the target. Tests use it to simulate a crash at that point.
var beforeReplace = func(tempPath string) error { return nil }

// WriteOptions controls WriteAtomic.
type WriteOptions struct {
	// Perm is the file mode of a newly written file (default 0o644).
	Perm os.FileMode
	// Backup copies the current target into <dir>/backups/<base>.<stamp>.bak before replacing it.
	Backup bool
	// KeepBackups prunes older backups beyond this count (0 keeps all).
	KeepBackups int
}

// WriteAtomic replaces path with data so that readers see either the old or the new
// content, never a partial file.
func WriteAtomic(path string, data []byte, opts WriteOptions) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is required")
	}
	if opts.Perm == 0 {
		opts.Perm = 0o644
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}

	if opts.Backup {
		if _, statErr := os.Stat(path); statErr == nil {
			bpath := filepath.Join(dir, BackupsDirName, fmt.Sprintf("%s.%s.bak", base, time.Now().Format("20060102-150405.000")))
			if cerr := copyFile(path, bpath); cerr != nil {
				return fmt.Errorf("backup current file: %w", cerr)
			}
			if opts.KeepBackups > 0 {
				pruneBackups(filepath.Join(dir, BackupsDirName), base, opts.KeepBackups)
			}
		}
	}

	temp := filepath.Join(dir, fmt.Sprintf(".%s%s%d-%d", base, tempMarker, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data, opts.Perm); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp file: %w", werr)
	}
	if herr := beforeReplace(temp); herr != nil {
		return fmt.Errorf("replace %s: %w", base, herr)
	}
	// os.Rename replaces the destination atomically on POSIX and uses
	// MoveFileEx(REPLACE_EXISTING) on Windows.
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", base, rerr)
	}
	syncDir(dir)
	return nil
}

// SweepTemps removes temp files left next to path by interrupted writes.
func SweepTemps(path string) int {
	dir := filepath.Dir(path)
	prefix := "." + filepath.Base(path) + tempMarker
	ents, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range ents {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			if os.Remove(filepath.Join(dir, e.Name())) == nil {
				n++
			}
		}
	}
	return n
}

// Backups returns the backup files of path, oldest first.
func Backups(path string) ([]string, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	base := filepath.Base(path)
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, base+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func pruneBackups(bdir, base string, keep int) {
	all, err := Backups(filepath.Join(filepath.Dir(bdir), base))
	if err != nil || len(all) <= keep {
		return
	}
	for _, p := range all[:len(all)-keep] {
		_ = os.Remove(p)
	}
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte, perm os.FileMode) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// syncDir makes the rename durable. Not supported on every platform, so errors are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
// A failed copy removes dst so no partial file is left behind.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
