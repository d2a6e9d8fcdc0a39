// File: cmd/mine.go
package cmd

import (
	"fmt"
	"os"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/patchbench/internal/miner"
	"github.com/xkilldash9x/patchbench/internal/observability"
	"github.com/xkilldash9x/patchbench/internal/vcs"
)

// newMineCmd creates the `mine` command: extract bug-fix episodes from the
// repository's history and dump them as test cases.
func newMineCmd() *cobra.Command {
	mineCmd := &cobra.Command{
		Use:   "mine",
		Short: "Mine historical bug-fix commits into labeled test cases",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override config file and environment values.
			if err := viper.BindPFlag("repo.root", cmd.Flags().Lookup("repo")); err != nil {
				return err
			}
			if err := viper.BindPFlag("miner.max_commits", cmd.Flags().Lookup("max-commits")); err != nil {
				return err
			}
			return viper.BindPFlag("miner.lookback", cmd.Flags().Lookup("lookback"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			git := vcs.NewGit(logger, cfg.Repo.Root)
			m := miner.NewMiner(logger, git, cfg.Miner)

			cases, err := m.Mine(ctx)
			if err != nil {
				return fmt.Errorf("mining failed: %w", err)
			}
			logger.Info("Mining complete.",
				zap.Int("cases", len(cases)),
				zap.String("repo", cfg.Repo.Root))

			out, _ := cmd.Flags().GetString("out")
			data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(cases, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize mined cases: %w", err)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mined %d test cases into %s\n", len(cases), out)
			return nil
		},
	}

	mineCmd.Flags().String("repo", ".", "repository root to mine")
	mineCmd.Flags().String("out", "cases.json", "output file for mined test cases")
	mineCmd.Flags().Int("max-commits", 0, "cap on commits to examine (0 = config default)")
	mineCmd.Flags().Duration("lookback", 0, "history window to mine (0 = config default)")
	return mineCmd
}
