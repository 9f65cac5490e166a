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
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/weft/pkg/engine"
	"github.com/teradata-labs/weft/pkg/pipeline"
)

var queryCmd = &cobra.Command{
	Use:   "query \"<question>\"",
	Short: "Run a natural-language query against a data source",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringP("source", "s", "", "data source id (required)")
	queryCmd.Flags().Bool("stream", false, "emit progress events as NDJSON")
	queryCmd.Flags().Bool("explain", false, "include the generated SQL in the response")
	queryCmd.Flags().Bool("no-cache", false, "bypass the result cache")
	queryCmd.Flags().String("user", "", "user attribution recorded in history")
	_ = queryCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, config)
	if err != nil {
		return err
	}
	defer eng.Stop()

	source, _ := cmd.Flags().GetString("source")
	req := engine.NewRequest(args[0], source)
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		req.UseCache = false
	}
	req.Explain, _ = cmd.Flags().GetBool("explain")
	user, _ := cmd.Flags().GetString("user")

	if stream, _ := cmd.Flags().GetBool("stream"); stream {
		return runQueryStream(ctx, eng, user, req)
	}

	resp, err := eng.ExecuteQuery(ctx, config.Tenant, user, req)
	if err != nil {
		return renderEngineError(err)
	}
	return printJSON(resp)
}

func runQueryStream(ctx context.Context, eng *engine.Engine, user string, req engine.Request) error {
	stream := pipeline.NewStream(config.Executor.ProgressBuffer)
	go eng.ExecuteQueryStream(ctx, config.Tenant, user, req, stream)
	return pipeline.WriteNDJSON(ctx, os.Stdout, stream)
}

// renderEngineError prints the structured error shape before failing
// the command, so scripts can parse stderr.
func renderEngineError(err error) error {
	eerr := engine.AsEngineError(err)
	out := map[string]any{"success": false, "error": eerr.Kind, "message": eerr.Message}
	if len(eerr.Suggestions) > 0 {
		out["suggestions"] = eerr.Suggestions
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(os.Stderr, string(data))
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
