package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	voiceprint "github.com/ieee0824/voiceprint-go"
	"github.com/ieee0824/voiceprint-go/store"
)

var storeDir string

var enrollCmd = &cobra.Command{
	Use:   "enroll [flags] <features>...",
	Short: "Enrol a speaker",
	Long:  `Each feature file is one enrolment session.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEnroll,
}

var scoreCmd = &cobra.Command{
	Use:   "score [flags] <features>...",
	Short: "Score a session against an enrolled speaker",
	Long:  `All feature files are treated as one test session. Prints the linear score.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScore,
}

var speakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "Manage enrolled speakers",
}

var speakersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled speakers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ids, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, err := st.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", id, rec.Sessions, rec.Enrolled.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	},
}

var speakersDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete enrolled speakers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		for _, id := range args {
			if err := st.Delete(cmd.Context(), id); err != nil {
				return err
			}
			logger.Info("deleted", "speaker", id)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "speaker store directory (overrides store.dir)")

	for _, c := range []*cobra.Command{enrollCmd, scoreCmd} {
		c.Flags().String("base", "base.mp", "base machine")
		c.Flags().String("id", "", "speaker id")
		c.MarkFlagRequired("id")
	}
	speakersCmd.AddCommand(speakersListCmd, speakersDeleteCmd)
}

func openStore() (store.Store, error) {
	opts := cfg.BadgerOptions()
	if storeDir != "" {
		opts.Dir = storeDir
		opts.InMemory = false
	}
	opts.Logger = logger
	return store.NewBadger(opts)
}

func openSystem(cmd *cobra.Command) (*voiceprint.System, error) {
	basePath, _ := cmd.Flags().GetString("base")
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	sys, err := voiceprint.Open(basePath, st,
		voiceprint.WithEnrollIterations(cfg.JFA.EnrollIterations),
		voiceprint.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, err
	}
	return sys, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	sys, err := openSystem(cmd)
	if err != nil {
		return err
	}
	defer sys.Store.Close()

	sessions := make([][][]float64, len(args))
	for i, p := range args {
		if sessions[i], err = readFeatures(p); err != nil {
			return err
		}
	}
	return sys.Enroll(cmd.Context(), id, sessions)
}

func runScore(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	sys, err := openSystem(cmd)
	if err != nil {
		return err
	}
	defer sys.Store.Close()

	frames, err := readAllFeatures(args)
	if err != nil {
		return err
	}
	score, err := sys.Score(cmd.Context(), id, frames)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.6f\n", id, score)
	return nil
}
