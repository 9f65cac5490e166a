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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/weft/internal/pgxdriver"
	"github.com/teradata-labs/weft/pkg/history"
	"github.com/teradata-labs/weft/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded queries and usage analytics",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded queries",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <query-id>",
	Short: "Show one recorded query",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Aggregate usage statistics over a window",
	RunE:  runHistoryAnalytics,
}

var historyOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Report SQL quality scores and common suggestions",
	RunE:  runHistoryOptimize,
}

var historyFeedbackCmd = &cobra.Command{
	Use:   "feedback <query-id>",
	Short: "Attach feedback to a completed query",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryFeedback,
}

func init() {
	historyListCmd.Flags().String("source", "", "filter by data source id")
	historyListCmd.Flags().String("status", "", "filter by status (pending, completed, failed)")
	historyListCmd.Flags().String("search", "", "substring of the question text")
	historyListCmd.Flags().Int("limit", 20, "maximum rows")
	historyListCmd.Flags().Int("offset", 0, "pagination offset")

	historyAnalyticsCmd.Flags().String("window", "7d", "window (1d, 7d, 30d, 90d, 1y)")
	historyOptimizeCmd.Flags().String("window", "7d", "window (1d, 7d, 30d, 90d, 1y)")

	historyFeedbackCmd.Flags().Bool("helpful", false, "the result answered the question")
	historyFeedbackCmd.Flags().Bool("accurate", false, "the result was correct")
	historyFeedbackCmd.Flags().Int("rating", 0, "rating 1-5")
	historyFeedbackCmd.Flags().String("comments", "", "free-form comments")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyAnalyticsCmd, historyOptimizeCmd, historyFeedbackCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the history store without the rest of the engine,
// so reporting works with no LLM credentials configured.
func openHistory(ctx context.Context) (*history.Manager, func(), error) {
	var store history.Store
	var err error
	switch config.History.Backend {
	case "postgres":
		store, err = history.NewPostgresStore(ctx, pgxdriver.Config{DSN: config.History.PostgresDSN})
	default:
		store, err = history.NewSQLiteStore(config.History.SQLitePath)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening history store: %w", err)
	}
	return history.NewManager(store), func() { _ = store.Close() }, nil
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	mgr, closeStore, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	source, _ := cmd.Flags().GetString("source")
	status, _ := cmd.Flags().GetString("status")
	search, _ := cmd.Flags().GetString("search")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	records, err := mgr.Store().List(ctx, config.Tenant, history.Filters{
		DataSourceID: source,
		Status:       types.QueryStatus(status),
		Search:       search,
	}, history.Page{Limit: limit, Offset: offset})
	if err != nil {
		return err
	}
	return printJSON(records)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mgr, closeStore, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	record, err := mgr.Store().Get(ctx, args[0], config.Tenant)
	if err != nil {
		return err
	}
	return printJSON(record)
}

func runHistoryAnalytics(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	mgr, closeStore, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	window, _ := cmd.Flags().GetString("window")
	analytics, err := mgr.Analytics(ctx, config.Tenant, history.Window(window))
	if err != nil {
		return err
	}
	return printJSON(analytics)
}

func runHistoryOptimize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	mgr, closeStore, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	window, _ := cmd.Flags().GetString("window")
	report, err := mgr.OptimizationReport(ctx, config.Tenant, history.Window(window))
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runHistoryFeedback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mgr, closeStore, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	helpful, _ := cmd.Flags().GetBool("helpful")
	accurate, _ := cmd.Flags().GetBool("accurate")
	rating, _ := cmd.Flags().GetInt("rating")
	comments, _ := cmd.Flags().GetString("comments")
	if rating != 0 && (rating < 1 || rating > 5) {
		return fmt.Errorf("rating must be between 1 and 5")
	}

	err = mgr.Store().UpdateFeedback(ctx, args[0], config.Tenant, types.Feedback{
		Helpful:  helpful,
		Accurate: accurate,
		Rating:   rating,
		Comments: comments,
	})
	if err != nil {
		return err
	}
	record, err := mgr.Store().Get(ctx, args[0], config.Tenant)
	if err != nil {
		return err
	}
	return printJSON(record)
}
