// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drl/statussync/internal/app"
	"github.com/drl/statussync/internal/config"
)

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	SkipLock bool
	Timeout  time.Duration
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation pass",
		Long: `Run one reconciliation pass over every tenant with letters awaiting a
signing outcome, then print the run summary as JSON on stdout.

The pass holds the same Redis run lock as the service, so it never overlaps
a scheduled pass. Use --skip-lock only when the service is stopped.

Example:
  reconcile run
  reconcile run --timeout 30m --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipLock, "skip-lock", false, "do not take the cross-instance run lock")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "pass deadline (default: scheduler.max_duration)")

	return cmd
}

func runOnce(cmd *cobra.Command, opts *runOptions) error {
	if opts.Timeout < 0 {
		return fmt.Errorf("invalid --timeout %s", opts.Timeout)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr; stdout carries the JSON result.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := a.Scheduler(!opts.SkipLock, opts.Timeout)
	result, err := sched.TriggerNow(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if result.SelectError != "" {
		return fmt.Errorf("tenant selection failed: %s", result.SelectError)
	}
	return nil
}
