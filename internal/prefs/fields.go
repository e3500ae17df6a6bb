/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package prefs

import (
	"fmt"
	"strconv"
	"strings"

	"selectedbounds/internal/domain"
)

// EditableFields lists the fields Set accepts, in display order.
var EditableFields = []string{
	domain.FieldMode,
	domain.FieldColor,
	domain.FieldUseObjectColor,
	domain.FieldWidth,
	domain.FieldLength,
	domain.FieldSceneIndependent,
	domain.FieldDisplayPreferences,
}

// Set parses raw for the named field and applies it through the typed setter.
func (s *Store) Set(field, raw string) error {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(strings.TrimSpace(field)) {
	case domain.FieldMode:
		m, err := domain.ParseMode(raw)
		if err != nil {
			return err
		}
		return s.SetMode(m)
	case domain.FieldColor:
		c, err := ParseColor(raw)
		if err != nil {
			return err
		}
		return s.SetColor(c)
	case domain.FieldUseObjectColor:
		v, err := parseFlag(domain.FieldUseObjectColor, raw)
		if err != nil {
			return err
		}
		return s.SetUseObjectColor(v)
	case domain.FieldWidth:
		v, err := parseInt(domain.FieldWidth, raw)
		if err != nil {
			return err
		}
		return s.SetWidth(v)
	case domain.FieldLength:
		v, err := parseInt(domain.FieldLength, strings.TrimSuffix(raw, "%"))
		if err != nil {
			return err
		}
		return s.SetLength(v)
	case domain.FieldSceneIndependent:
		v, err := parseFlag(domain.FieldSceneIndependent, raw)
		if err != nil {
			return err
		}
		return s.SetSceneIndependent(v)
	case domain.FieldDisplayPreferences:
		v, err := parseFlag(domain.FieldDisplayPreferences, raw)
		if err != nil {
			return err
		}
		return s.SetDisplayPreferences(v)
	case domain.FieldRunning:
		return &domain.ValidationError{Field: domain.FieldRunning, Value: raw, Reason: "internal state, not user-editable"}
	default:
		return &domain.ValidationError{Field: field, Value: raw, Reason: "unknown preference"}
	}
}

// Value renders the named field as text, in the form Set accepts.
func (s *Store) Value(field string) (string, error) {
	p := s.Snapshot()
	switch strings.ToLower(strings.TrimSpace(field)) {
	case domain.FieldRunning:
		return strconv.FormatBool(p.Running), nil
	case domain.FieldMode:
		return string(p.Mode), nil
	case domain.FieldColor:
		return FormatColor(p.Color), nil
	case domain.FieldUseObjectColor:
		return strconv.FormatBool(p.UseObjectColor), nil
	case domain.FieldWidth:
		return strconv.Itoa(p.Width), nil
	case domain.FieldLength:
		return strconv.Itoa(p.Length), nil
	case domain.FieldSceneIndependent:
		return strconv.FormatBool(p.SceneIndependent), nil
	case domain.FieldDisplayPreferences:
		return strconv.FormatBool(p.DisplayPreferences), nil
	}
	return "", &domain.ValidationError{Field: field, Value: nil, Reason: "unknown preference"}
}

// ParseColor accepts "r,g,b,a" (optionally wrapped in () or []), or hex "#rrggbb" / "#rrggbbaa".
// Three components imply alpha 1.
func ParseColor(raw string) (domain.Color, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s)
	}
	s = strings.Trim(s, "()[] ")
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return domain.Color{}, &domain.ValidationError{Field: domain.FieldColor, Value: raw, Reason: "expected 3 or 4 components"}
	}
	c := domain.Color{0, 0, 0, 1}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return domain.Color{}, &domain.ValidationError{Field: domain.FieldColor, Value: raw, Reason: fmt.Sprintf("component %d is not a number", i)}
		}
		c[i] = v
	}
	if !c.Valid() {
		return domain.Color{}, &domain.ValidationError{Field: domain.FieldColor, Value: raw, Reason: "components must be within [0,1]"}
	}
	return c, nil
}

func parseHexColor(raw string) (domain.Color, error) {
	h := strings.TrimPrefix(raw, "#")
	if len(h) != 6 && len(h) != 8 {
		return domain.Color{}, &domain.ValidationError{Field: domain.FieldColor, Value: raw, Reason: "hex color must be #rrggbb or #rrggbbaa"}
	}
	c := domain.Color{0, 0, 0, 1}
	for i := 0; i*2 < len(h); i++ {
		v, err := strconv.ParseUint(h[i*2:i*2+2], 16, 8)
		if err != nil {
			return domain.Color{}, &domain.ValidationError{Field: domain.FieldColor, Value: raw, Reason: "invalid hex digit"}
		}
		c[i] = float64(v) / 255
	}
	return c, nil
}

// FormatColor renders c as "r,g,b,a".
func FormatColor(c domain.Color) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func parseFlag(field, raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, &domain.ValidationError{Field: field, Value: raw, Reason: "expected true or false"}
}

func parseInt(field, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &domain.ValidationError{Field: field, Value: raw, Reason: "not an integer"}
	}
	return v, nil
}
