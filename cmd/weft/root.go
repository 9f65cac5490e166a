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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teradata-labs/weft/internal/log"
	"github.com/teradata-labs/weft/internal/version"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "weft",
	Short:   "Weft - natural language query engine",
	Long:    `Weft turns natural-language questions into validated read-only SQL and runs them against databases, spreadsheets, and SaaS sources.`,
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $WEFT_DATA_DIR/weft.yaml)")

	// LLM flags
	rootCmd.PersistentFlags().StringSlice("llm-providers", nil, "LLM failover order (anthropic, bedrock, openai)")
	rootCmd.PersistentFlags().String("anthropic-key", "", "Anthropic API key (or use env)")
	rootCmd.PersistentFlags().String("anthropic-model", "", "Anthropic model override")
	rootCmd.PersistentFlags().String("openai-key", "", "OpenAI API key (or use env)")
	rootCmd.PersistentFlags().Int("retry-attempts", 3, "generation attempts per provider")

	// History flags
	rootCmd.PersistentFlags().String("history-backend", "sqlite", "query history backend (sqlite, postgres)")
	rootCmd.PersistentFlags().String("db", "", "SQLite history database path")

	// Tenant flag
	rootCmd.PersistentFlags().String("tenant", "default", "tenant scope for queries and history")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("llm.providers", rootCmd.PersistentFlags().Lookup("llm-providers"))
	_ = viper.BindPFlag("llm.anthropic_api_key", rootCmd.PersistentFlags().Lookup("anthropic-key"))
	_ = viper.BindPFlag("llm.anthropic_model", rootCmd.PersistentFlags().Lookup("anthropic-model"))
	_ = viper.BindPFlag("llm.openai_api_key", rootCmd.PersistentFlags().Lookup("openai-key"))
	_ = viper.BindPFlag("llm.retry_attempts", rootCmd.PersistentFlags().Lookup("retry-attempts"))

	_ = viper.BindPFlag("history.backend", rootCmd.PersistentFlags().Lookup("history-backend"))
	_ = viper.BindPFlag("history.sqlite_path", rootCmd.PersistentFlags().Lookup("db"))

	_ = viper.BindPFlag("tenant", rootCmd.PersistentFlags().Lookup("tenant"))

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(config.Logging.Level, config.Logging.Development); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
}
