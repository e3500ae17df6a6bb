/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package defaults

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"selectedbounds/internal/domain"
)

// The add-on this tool replaces kept its defaults as a generated Python module:
//
//	# Generated by preferences.save
//	defaults = {'mode': 'SELECTED', 'color': (1.0, 0.0, 0.0, 1.0), ...}
//
// ImportLegacy reads that file so existing users keep their saved defaults.

var (
	legacyLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `#[^\n]*`},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "String", Pattern: `'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`},
		{Name: "Number", Pattern: `[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
		{Name: "Punct", Pattern: `[{}()\[\],:=]`},
	})

	legacyParser = participle.MustBuild[legacyModule](
		participle.Lexer(legacyLexer),
		participle.Elide("Whitespace", "Comment"),
	)
)

type legacyModule struct {
	Name    string         `parser:"@Ident '='"`
	Entries []*legacyEntry `parser:"'{' ( @@ ( ',' @@ )* ','? )? '}'"`
}

type legacyEntry struct {
	Key   pyString     `parser:"@String ':'"`
	Value *legacyValue `parser:"@@"`
}

type legacyValue struct {
	Str    *pyString      `parser:"  @String"`
	Number *float64       `parser:"| @Number"`
	Bool   *pyBool        `parser:"| @('True' | 'False')"`
	Tuple  []*legacyValue `parser:"| ( '(' | '[' ) ( @@ ( ',' @@ )* ','? )? ( ')' | ']' )"`
}

type pyString string

// Capture strips the quotes of a Python string literal.
func (s *pyString) Capture(values []string) error {
	if len(values) == 0 || len(values[0]) < 2 {
		return fmt.Errorf("string literal capture requires value")
	}
	raw := values[0]
	body := raw[1 : len(raw)-1]
	*s = pyString(strings.NewReplacer(`\\`, `\`, `\'`, `'`, `\"`, `"`).Replace(body))
	return nil
}

type pyBool bool

func (b *pyBool) Capture(values []string) error {
	*b = pyBool(len(values) > 0 && values[0] == "True")
	return nil
}

// ImportLegacy parses a legacy Python defaults module and validates the result.
func ImportLegacy(r io.Reader) (Artifact, error) {
	mod, err := legacyParser.Parse("config.py", r)
	if err != nil {
		return Artifact{}, fmt.Errorf("parse legacy defaults: %w", err)
	}
	if mod.Name != "defaults" {
		return Artifact{}, fmt.Errorf("parse legacy defaults: expected 'defaults = {...}', found %q", mod.Name)
	}
	doc := make(map[string]any, len(mod.Entries))
	for _, e := range mod.Entries {
		doc[string(e.Key)] = e.Value.native()
	}
	if err := validateDocument(doc); err != nil {
		return Artifact{}, err
	}
	a := Artifact{
		Mode:               domain.Mode(doc[domain.FieldMode].(string)),
		UseObjectColor:     doc[domain.FieldUseObjectColor].(bool),
		Width:              doc[domain.FieldWidth].(int),
		Length:             doc[domain.FieldLength].(int),
		SceneIndependent:   doc[domain.FieldSceneIndependent].(bool),
		DisplayPreferences: doc[domain.FieldDisplayPreferences].(bool),
	}
	for i, v := range doc[domain.FieldColor].([]any) {
		a.Color[i] = toFloat(v)
	}
	return a, nil
}

// native converts a parsed value into the shapes the schema validator expects.
// Integral numbers become int so integer fields validate.
func (v *legacyValue) native() any {
	switch {
	case v.Str != nil:
		return string(*v.Str)
	case v.Number != nil:
		if f := *v.Number; f == math.Trunc(f) && math.Abs(f) < 1<<31 {
			return int(f)
		}
		return *v.Number
	case v.Bool != nil:
		return bool(*v.Bool)
	default:
		out := make([]any, 0, len(v.Tuple))
		for _, t := range v.Tuple {
			out = append(out, t.native())
		}
		return out
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
