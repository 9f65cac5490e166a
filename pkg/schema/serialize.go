// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/weft/pkg/types"
)

// Serialize renders a schema as compact prompt text: one line per
// column, relationships at the end, sample rows as JSON.
func Serialize(s *types.Schema) string {
	var b strings.Builder
	for ti := range s.Tables {
		t := &s.Tables[ti]
		fmt.Fprintf(&b, "Table %s:\n", t.Name)
		for _, col := range t.Columns {
			nullable := ""
			if col.Nullable {
				nullable = " nullable"
			}
			fmt.Fprintf(&b, "  %s %s%s\n", col.Name, col.Type, nullable)
		}
		if len(t.SampleRows) > 0 {
			b.WriteString("  sample rows:\n")
			for _, row := range t.SampleRows {
				if encoded, err := json.Marshal(row); err == nil {
					fmt.Fprintf(&b, "    %s\n", encoded)
				}
			}
		}
	}
	if len(s.Relationships) > 0 {
		b.WriteString("Relationships:\n")
		for _, rel := range s.Relationships {
			fmt.Fprintf(&b, "  %s -> %s", rel.FromColumn, rel.ToColumn)
			if rel.Cardinality != "" {
				fmt.Fprintf(&b, " (%s)", rel.Cardinality)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Truncate drops detail until fits(text) reports true: first sample
// rows, then relationships, then whole tables from the end. Returns
// the serialized text of the reduced schema.
func Truncate(s *types.Schema, fits func(string) bool) string {
	text := Serialize(s)
	if fits(text) {
		return text
	}

	reduced := *s
	reduced.Tables = append([]types.Table(nil), s.Tables...)
	for i := range reduced.Tables {
		reduced.Tables[i].SampleRows = nil
	}
	if text = Serialize(&reduced); fits(text) {
		return text
	}

	reduced.Relationships = nil
	if text = Serialize(&reduced); fits(text) {
		return text
	}

	for len(reduced.Tables) > 1 {
		reduced.Tables = reduced.Tables[:len(reduced.Tables)-1]
		if text = Serialize(&reduced); fits(text) {
			return text
		}
	}
	return Serialize(&reduced)
}
