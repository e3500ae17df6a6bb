/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"selectedbounds/internal/commands"
	"selectedbounds/internal/config"
	"selectedbounds/internal/crash"
	applog "selectedbounds/internal/log"
	"selectedbounds/internal/storage"
	"selectedbounds/internal/telemetry"
	"selectedbounds/internal/version"
)

func usage() {
	fmt.Println("selectedbounds: selected bounds overlay preferences")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  selectedbounds version|-v|--version           Show version")
	fmt.Println("  selectedbounds show                            Print the current preferences")
	fmt.Println("  selectedbounds set <field> <value>             Change one preference")
	fmt.Println("  selectedbounds update [<workspace>]            Copy the preferences into every scene")
	fmt.Println("  selectedbounds save-defaults                   Save the preferences as defaults")
	fmt.Println("  selectedbounds reset-defaults                  Reload the preferences from the saved defaults")
	fmt.Println("  selectedbounds import-legacy <config.py>       Import defaults from the old add-on config")
	fmt.Println("  selectedbounds scene create <dir> <name>       Create a scene with the current preferences")
	fmt.Println("  selectedbounds scene list [<workspace>]        List scenes and the settings drawn for them")
	fmt.Println("  selectedbounds history [<workspace>]           Show recent propagation runs")
	fmt.Println("  selectedbounds shell [<workspace>]             Interactive session (undo, redo, start, stop)")
}

func main() {
	cfgPath, _ := config.ConfigPath()
	cfg, cfgErr := config.Load()
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not fully loaded", slog.Any("err", cfgErr))
	}
	tc := telemetry.New(telemetry.Config{
		OptIn:     cfg.Telemetry.OptIn,
		EventsURL: cfg.Telemetry.EventsURL,
		CrashURL:  cfg.Telemetry.CrashURL,
		Timeout:   cfg.Telemetry.Timeout(),
	})
	telemetry.SetDefault(tc)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	if a := args[1]; a == "version" || a == "--version" || a == "-v" {
		fmt.Println(version.String())
		return
	}

	workspace := cfg.Paths.Workspace
	switch args[1] {
	case "update", "history", "shell":
		if len(args) >= 3 {
			workspace = args[2]
		}
	case "scene":
		if len(args) >= 4 && args[2] == "list" {
			workspace = args[3]
		}
	}
	if abs, err := filepath.Abs(workspace); err == nil {
		workspace = abs
	}

	s, err := openSession(cfg, cfgPath, workspace)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(exitCode(err))
	}
	code := func() int {
		defer crash.Recover(&crash.Target{Dir: workspace, Snapshot: s.store.Snapshot})
		return dispatch(s, args[1:])
	}()
	s.Close()
	tc.Flush(context.Background())
	tc.Close()
	if code != 0 {
		os.Exit(code)
	}
}

func dispatch(s *session, args []string) int {
	ctx := context.Background()
	fail := func(err error) int {
		s.log.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		fmt.Println("Error:", err)
		return exitCode(err)
	}
	status := func(st commands.Status) int {
		fmt.Println(st)
		if !st.OK() {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "show":
		fmt.Print(s.show())
	case "set":
		if len(args) < 3 {
			fmt.Println("set requires <field> and <value>")
			usage()
			return 2
		}
		if err := s.set(args[1], strings.Join(args[2:], " ")); err != nil {
			return fail(err)
		}
		v, _ := s.store.Value(args[1])
		fmt.Printf("%s = %s\n", args[1], v)
	case "update":
		return status(s.run(ctx, commands.UpdateSettings))
	case "save-defaults":
		return status(s.run(ctx, commands.SaveDefaults))
	case "reset-defaults":
		return status(s.run(ctx, commands.ResetDefaults))
	case "import-legacy":
		if len(args) < 2 {
			fmt.Println("import-legacy requires <config.py>")
			usage()
			return 2
		}
		if err := s.importLegacy(args[1]); err != nil {
			return fail(err)
		}
		fmt.Println("Imported defaults to", s.pers.Path)
	case "scene":
		return sceneCmd(s, args[1:])
	case "history":
		if s.idx == nil {
			fmt.Println("No workspace index available.")
			return 1
		}
		runs, err := s.idx.Runs(ctx, 10)
		if err != nil {
			return fail(err)
		}
		for _, r := range runs {
			fmt.Println(formatRun(r))
		}
	case "shell":
		return runShell(ctx, s, os.Stdin, os.Stdout)
	default:
		usage()
		return 2
	}
	return 0
}

func sceneCmd(s *session, args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}
	switch args[0] {
	case "create":
		if len(args) < 3 {
			fmt.Println("scene create requires <dir> and <name>")
			return 2
		}
		d, err := s.createScene(args[1], args[2])
		if err != nil {
			fmt.Println("Error:", err)
			return exitCode(err)
		}
		fmt.Printf("Created scene %s (%s) at %s\n", d.Name(), d.ID(), d.Path())
	case "list":
		for _, d := range s.reg.Documents() {
			fmt.Println(describeScene(s.store, d))
		}
	default:
		usage()
		return 2
	}
	return 0
}

func formatRun(r storage.Run) string {
	if r.NotApplicable {
		return fmt.Sprintf("#%d %s  scene independent, nothing propagated", r.ID, r.At.Format("2006-01-02 15:04:05"))
	}
	line := fmt.Sprintf("#%d %s  applied=%d", r.ID, r.At.Format("2006-01-02 15:04:05"), len(r.Applied))
	if len(r.Failed) > 0 {
		line += " failed=" + strings.Join(r.Failed, ",")
	}
	return line
}
