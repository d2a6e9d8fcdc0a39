// File: cmd/evaluate.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/patchbench/api/schemas"
	"github.com/xkilldash9x/patchbench/internal/applier"
	"github.com/xkilldash9x/patchbench/internal/config"
	"github.com/xkilldash9x/patchbench/internal/evaluation"
	"github.com/xkilldash9x/patchbench/internal/failures"
	"github.com/xkilldash9x/patchbench/internal/generator"
	"github.com/xkilldash9x/patchbench/internal/miner"
	"github.com/xkilldash9x/patchbench/internal/observability"
	"github.com/xkilldash9x/patchbench/internal/request"
	"github.com/xkilldash9x/patchbench/internal/selection"
	"github.com/xkilldash9x/patchbench/internal/vcs"
)

// newEvaluateCmd creates the `evaluate` command: run the full
// request-generate-select-apply pipeline over mined cases or live failures
// and write a report.
func newEvaluateCmd() *cobra.Command {
	evalCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate candidate patches against mined cases or live test failures",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("repo.root", cmd.Flags().Lookup("repo")); err != nil {
				return err
			}
			if err := viper.BindPFlag("repo.allow_dirty", cmd.Flags().Lookup("allow-dirty")); err != nil {
				return err
			}
			return viper.BindPFlag("evaluation.report_path", cmd.Flags().Lookup("report"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			gen, err := generator.NewGeminiGenerator(ctx, logger, cfg.Generator)
			if err != nil {
				return fmt.Errorf("failed to initialize candidate generator: %w", err)
			}
			defer gen.Close()

			git := vcs.NewGit(logger, cfg.Repo.Root)
			runner := evaluation.NewRunner(
				logger,
				cfg.Evaluation,
				cfg.Repo,
				request.NewBuilder(logger, cfg.Repo.Root, schemas.ProjectContext{
					ProjectType: cfg.Repo.ProjectType,
					Language:    cfg.Repo.Language,
					Framework:   cfg.Repo.Framework,
				}),
				gen,
				selection.NewEngine(logger, cfg.Selection),
				applier.New(logger, cfg.Runner, cfg.Repo.Root, git, nil),
				git,
			)

			live, _ := cmd.Flags().GetBool("live")
			var results []evaluation.CaseResult
			var runErr error
			if live {
				results, runErr = runLive(ctx, logger, cfg, runner)
			} else {
				casesPath, _ := cmd.Flags().GetString("cases")
				cases, err := loadOrMineCases(ctx, logger, cfg, git, casesPath)
				if err != nil {
					return err
				}
				results, runErr = runner.Run(ctx, cases)
			}

			// Collected results are reported even when the batch aborted.
			summary := evaluation.Aggregate(results)
			if len(results) > 0 {
				if err := evaluation.WriteReport(cfg.Evaluation.ReportPath, cfg.Repo.Root, results, summary); err != nil {
					logger.Error("Failed to write evaluation report.", zap.Error(err))
				}
			}
			if runErr != nil {
				return runErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Evaluated %d cases: %d passed, %d failed (pass rate %.1f%%)\nReport: %s\n",
				summary.TotalTests, summary.PassedTests, summary.FailedTests,
				summary.PassRate*100, cfg.Evaluation.ReportPath)
			return nil
		},
	}

	evalCmd.Flags().String("repo", ".", "repository root under evaluation")
	evalCmd.Flags().String("cases", "cases.json", "mined test cases to evaluate (mined on the fly when missing)")
	evalCmd.Flags().Bool("live", false, "repair currently failing tests instead of replaying mined cases")
	evalCmd.Flags().Bool("allow-dirty", false, "start even when the worktree has uncommitted changes")
	evalCmd.Flags().String("report", "", "evaluation report path (overrides config)")
	return evalCmd
}

// runLive runs the configured test command once, parses its failures, and
// drives the repair pipeline over them.
func runLive(ctx context.Context, logger *zap.Logger, cfg *config.Config, runner *evaluation.Runner) ([]evaluation.CaseResult, error) {
	if len(cfg.Runner.TestCommand) == 0 {
		return nil, fmt.Errorf("live mode requires runner.test_command to be configured")
	}

	testCtx := ctx
	if cfg.Runner.TestTimeout > 0 {
		var cancel context.CancelFunc
		testCtx, cancel = context.WithTimeout(ctx, cfg.Runner.TestTimeout)
		defer cancel()
	}
	execCmd := exec.CommandContext(testCtx, cfg.Runner.TestCommand[0], cfg.Runner.TestCommand[1:]...)
	execCmd.Dir = cfg.Repo.Root
	// A nonzero exit is expected when tests fail; the output is what matters.
	output, _ := execCmd.CombinedOutput()

	liveFailures := failures.Parse(string(output))
	if len(liveFailures) == 0 {
		logger.Info("No failing tests detected; nothing to repair.")
		return nil, nil
	}
	logger.Info("Detected live failures.", zap.Int("count", len(liveFailures)))
	return runner.RunLive(ctx, liveFailures)
}

// loadOrMineCases loads previously mined cases from disk, mining fresh ones
// when the file does not exist.
func loadOrMineCases(ctx context.Context, logger *zap.Logger, cfg *config.Config, git *vcs.Git, path string) ([]schemas.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		logger.Info("No mined cases found; mining from history.", zap.String("path", path))
		return miner.NewMiner(logger, git, cfg.Miner).Mine(ctx)
	}

	var cases []schemas.TestCase
	if err := json.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cases, nil
}
