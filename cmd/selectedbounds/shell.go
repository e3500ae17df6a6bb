/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"selectedbounds/internal/overlay"
)

const shellHelp = `commands:
  show                      print the preferences
  get <field>               print one preference
  set <field> <value>       change one preference
  start | stop              start or stop the overlay
  scenes                    list scenes and their effective settings
  scene <id>                show one scene
  status                    overlay state and undo history
  update_settings | save_defaults | undo | redo | reset_defaults
  help | quit`

// runShell reads one command per line until EOF or quit.
func runShell(ctx context.Context, s *session, in io.Reader, out io.Writer) int {
	sc := bufio.NewScanner(in)
	fmt.Fprintln(out, "selectedbounds shell; type help for commands")
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			break
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		fmt.Fprintln(out, shellLine(ctx, s, fields))
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	return 0
}

func shellLine(ctx context.Context, s *session, fields []string) string {
	switch fields[0] {
	case "help":
		return shellHelp
	case "show":
		return strings.TrimRight(s.show(), "\n")
	case "get":
		if len(fields) != 2 {
			return "usage: get <field>"
		}
		v, err := s.store.Value(fields[1])
		if err != nil {
			return "Error: " + err.Error()
		}
		return v
	case "set":
		if len(fields) < 3 {
			return "usage: set <field> <value>"
		}
		if err := s.set(fields[1], strings.Join(fields[2:], " ")); err != nil {
			return "Error: " + err.Error()
		}
		v, _ := s.store.Value(fields[1])
		return fields[1] + " = " + v
	case "start":
		if err := s.ctrl.Start(); err != nil {
			if errors.Is(err, overlay.ErrAlreadyRunning) {
				return "overlay is already running"
			}
			return "Error: " + err.Error()
		}
		return "overlay started"
	case "stop":
		s.ctrl.Stop()
		return "overlay stopped"
	case "scenes":
		if s.reg.Len() == 0 {
			return "no scenes open"
		}
		docs := s.reg.Documents()
		lines := make([]string, 0, len(docs))
		for _, d := range docs {
			lines = append(lines, describeScene(s.store, d))
		}
		return strings.Join(lines, "\n")
	case "scene":
		if len(fields) != 2 {
			return "usage: scene <id>"
		}
		d, ok := s.reg.Get(fields[1])
		if !ok {
			return fmt.Sprintf("no open scene %q", fields[1])
		}
		return describeScene(s.store, d)
	case "status":
		steps, size := s.store.HistorySize()
		return fmt.Sprintf("running=%v scenes=%d undo_steps=%d history_bytes=%d can_redo=%v",
			s.ctrl.Running(), s.reg.Len(), steps, size, s.store.CanRedo())
	}
	if slices.Contains(s.disp.Names(), fields[0]) {
		return s.run(ctx, fields[0]).String()
	}
	return fmt.Sprintf("unknown command %q; type help", fields[0])
}
