package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ieee0824/voiceprint-go/em"
	"github.com/ieee0824/voiceprint-go/gmm"
	"github.com/ieee0824/voiceprint-go/internal/report"
	"github.com/ieee0824/voiceprint-go/kmeans"
)

var ubmCmd = &cobra.Command{
	Use:   "ubm [flags] <features>...",
	Short: "Train a universal background model",
	Long: `Train a diagonal GMM on the frames of all feature files.

Means are initialised by K-Means, variances and weights from the clusters,
then refined by maximum-likelihood EM.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUBM,
}

var adaptCmd = &cobra.Command{
	Use:   "adapt [flags] <features>...",
	Short: "MAP-adapt a GMM to feature files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdapt,
}

var statsCmd = &cobra.Command{
	Use:   "stats [flags] <features>...",
	Short: "Accumulate the UBM statistics of one session",
	Long:  `All feature files are treated as one session.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStats,
}

func init() {
	ubmCmd.Flags().StringP("output", "o", "ubm.mp", "output model path")
	ubmCmd.Flags().Int("clusters", 0, "number of components (overrides kmeans.clusters)")
	ubmCmd.Flags().String("plot", "", "write a convergence chart (png, svg, pdf)")

	adaptCmd.Flags().String("ubm", "ubm.mp", "prior GMM")
	adaptCmd.Flags().StringP("output", "o", "adapted.mp", "output model path")
	adaptCmd.Flags().String("plot", "", "write a convergence chart (png, svg, pdf)")

	statsCmd.Flags().String("ubm", "ubm.mp", "UBM")
	statsCmd.Flags().StringP("output", "o", "session.stats", "output statistics path")
}

func runUBM(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("output")
	plotPath, _ := cmd.Flags().GetString("plot")
	k := cfg.KMeans.Clusters
	if cmd.Flags().Changed("clusters") {
		k, _ = cmd.Flags().GetInt("clusters")
	}

	data, err := readAllFeatures(args)
	if err != nil {
		return err
	}
	logger.Info("ubm", "frames", len(data), "dim", len(data[0]), "components", k)

	km := kmeans.New(k, len(data[0]))
	kt := em.New[*kmeans.Machine, [][]float64](kmeans.NewTrainer(kmeans.InitRandom, cfg.KMeans.Seed), cfg.KMeansEMConfig())
	kt.Logger = logger.With("stage", "kmeans")
	if err := kt.Train(km, data); err != nil {
		return fmt.Errorf("kmeans: %w", err)
	}

	g, err := gmm.FromKMeans(km, data, cfg.GMM.VarianceFloor)
	if err != nil {
		return err
	}

	t := em.New[*gmm.GMM, [][]float64](gmm.NewMLTrainer(cfg.TrainerConfig()), cfg.EMConfig())
	t.Logger = logger.With("stage", "ml")
	if err := t.Train(g, data); err != nil {
		return fmt.Errorf("ml: %w", err)
	}

	if err := create(out, func(f *os.File) error { return g.Save(f) }); err != nil {
		return err
	}
	logger.Info("saved", "path", out, "iterations", len(t.History()))
	return writePlot(plotPath, "UBM maximum likelihood", t.History())
}

func runAdapt(cmd *cobra.Command, args []string) error {
	ubmPath, _ := cmd.Flags().GetString("ubm")
	out, _ := cmd.Flags().GetString("output")
	plotPath, _ := cmd.Flags().GetString("plot")

	prior, err := loadGMM(ubmPath)
	if err != nil {
		return err
	}
	data, err := readAllFeatures(args)
	if err != nil {
		return err
	}

	mt, err := gmm.NewMAPTrainer(cfg.TrainerConfig(), cfg.Adaptation())
	if err != nil {
		return err
	}
	if err := mt.SetPriorGMM(prior); err != nil {
		return err
	}
	g := prior.Clone()
	t := em.New[*gmm.GMM, [][]float64](mt, cfg.EMConfig())
	t.Logger = logger.With("stage", "map")
	if err := t.Train(g, data); err != nil {
		return fmt.Errorf("map: %w", err)
	}

	if err := create(out, func(f *os.File) error { return g.Save(f) }); err != nil {
		return err
	}
	logger.Info("saved", "path", out, "frames", len(data))
	return writePlot(plotPath, "MAP adaptation", t.History())
}

func runStats(cmd *cobra.Command, args []string) error {
	ubmPath, _ := cmd.Flags().GetString("ubm")
	out, _ := cmd.Flags().GetString("output")

	ubm, err := loadGMM(ubmPath)
	if err != nil {
		return err
	}
	data, err := readAllFeatures(args)
	if err != nil {
		return err
	}
	s, err := ubm.Statistics(data)
	if err != nil {
		return err
	}
	if err := create(out, func(f *os.File) error { return s.Save(f) }); err != nil {
		return err
	}
	logger.Info("saved", "path", out, "frames", s.T, "avg_loglik", s.LogLikelihood/float64(s.T))
	return nil
}

func writePlot(path, title string, history []float64) error {
	if path == "" {
		return nil
	}
	if len(history) == 0 {
		logger.Warn("no likelihood history to plot", "path", path)
		return nil
	}
	if err := report.SaveConvergence(path, title, history); err != nil {
		return err
	}
	logger.Info("plot", "path", path)
	return nil
}
