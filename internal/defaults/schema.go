/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package defaults

import (
	_ "embed"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"selectedbounds/internal/domain"
)

//go:embed artifact.schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// validateDocument checks a decoded artifact mapping against the embedded schema.
// Violations are reported as a *domain.ValidationError naming the first offending field.
func validateDocument(doc map[string]any) error {
	if doc == nil {
		return &domain.ValidationError{Field: "defaults", Value: nil, Reason: "empty document"}
	}
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate defaults: %w", err)
	}
	if res.Valid() {
		return nil
	}
	errs := res.Errors()
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.String())
	}
	field := errs[0].Field()
	if i := strings.IndexByte(field, '.'); i > 0 {
		field = field[:i]
	}
	return &domain.ValidationError{Field: field, Value: errs[0].Value(), Reason: strings.Join(msgs, "; ")}
}
