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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/weft/pkg/engine"
)

var explainCmd = &cobra.Command{
	Use:   "explain \"<question>\"",
	Short: "Show the SQL a query would run, without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func init() {
	explainCmd.Flags().StringP("source", "s", "", "data source id (required)")
	_ = explainCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, config)
	if err != nil {
		return err
	}
	defer eng.Stop()

	source, _ := cmd.Flags().GetString("source")
	exp, err := eng.ExplainQuery(ctx, config.Tenant, engine.NewRequest(args[0], source))
	if err != nil {
		return renderEngineError(err)
	}
	return printJSON(exp)
}
