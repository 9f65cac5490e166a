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

package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint keys cache entries: hex SHA-256 over the tenant, the
// data source, and the normalised question. Normalisation lowercases
// and collapses whitespace so trivially reworded inputs collide.
func Fingerprint(tenant, dataSourceID, naturalLanguage string) string {
	normalised := strings.Join(strings.Fields(strings.ToLower(naturalLanguage)), " ")
	sum := sha256.Sum256([]byte(tenant + "|" + dataSourceID + "|" + normalised))
	return hex.EncodeToString(sum[:])
}
