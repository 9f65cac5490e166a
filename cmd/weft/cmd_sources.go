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
package main

import (
	"github.com/spf13/cobra"

	"github.com/teradata-labs/weft/pkg/types"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured data sources",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(*cobra.Command, []string) error {
	resolver, err := newConfigResolver(config)
	if err != nil {
		return err
	}
	out := make([]types.DataSource, 0, len(resolver.sources))
	for _, ds := range resolver.sources {
		if ds.Tenant != config.Tenant {
			continue
		}
		out = append(out, ds.Redacted())
	}
	return printJSON(out)
}
