package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ieee0824/voiceprint-go/jfa"
)

var jfaCmd = &cobra.Command{
	Use:   "jfa",
	Short: "Train a JFA base machine (U, V, d)",
	Long: `Train the subspaces of a joint factor analysis model.

The manifest is a YAML file listing the statistics files of each identity:

  identities:
    - id: alice
      sessions: [alice-1.stats, alice-2.stats]
    - id: bob
      sessions: [bob-1.stats]`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBaseTraining(cmd, false)
	},
}

var isvCmd = &cobra.Command{
	Use:   "isv",
	Short: "Train an ISV base machine (U, with V = 0 and fixed d)",
	Long:  `Same manifest format as 'voiceprint jfa'.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBaseTraining(cmd, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{jfaCmd, isvCmd} {
		c.Flags().String("ubm", "ubm.mp", "UBM the statistics were computed with")
		c.Flags().String("manifest", "train.yaml", "training manifest")
		c.Flags().StringP("output", "o", "base.mp", "output base machine path")
		c.Flags().Int("rank-u", 0, "session subspace rank (overrides jfa.rank_u)")
		c.Flags().Int("iter", 0, "training iterations (overrides jfa.iterations)")
	}
	jfaCmd.Flags().Int("rank-v", 0, "speaker subspace rank (overrides jfa.rank_v)")
}

func runBaseTraining(cmd *cobra.Command, isv bool) error {
	ubmPath, _ := cmd.Flags().GetString("ubm")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	out, _ := cmd.Flags().GetString("output")
	ru, rv, iters := cfg.JFA.RankU, cfg.JFA.RankV, cfg.JFA.Iterations
	if cmd.Flags().Changed("rank-u") {
		ru, _ = cmd.Flags().GetInt("rank-u")
	}
	if !isv && cmd.Flags().Changed("rank-v") {
		rv, _ = cmd.Flags().GetInt("rank-v")
	}
	if cmd.Flags().Changed("iter") {
		iters, _ = cmd.Flags().GetInt("iter")
	}

	ubm, err := loadGMM(ubmPath)
	if err != nil {
		return err
	}
	m, err := readManifest(manifestPath)
	if err != nil {
		return err
	}
	ds, err := loadDataset(m)
	if err != nil {
		return err
	}
	base, err := jfa.NewBaseMachine(ubm, ru, rv)
	if err != nil {
		return err
	}

	t := jfa.NewBaseTrainer(base)
	t.Seed = cfg.JFA.Seed
	t.Logger = logger
	logger.Info("train base machine", "isv", isv, "identities", ds.NumIdentities(),
		"rank_u", ru, "rank_v", rv, "iterations", iters)
	if isv {
		err = t.TrainISV(ds, iters, cfg.JFA.RelevanceFactor)
	} else {
		err = t.Train(ds, iters)
	}
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	if err := create(out, func(f *os.File) error { return base.Save(f) }); err != nil {
		return err
	}
	logger.Info("saved", "path", out)
	return nil
}
