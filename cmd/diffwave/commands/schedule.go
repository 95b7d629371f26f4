package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var scheduleFull bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect the noise schedule and fast-sampling mapping",
	Long: `Print the training noise schedule and, when a fast inference
schedule is configured, the training steps each inference step maps to.

Examples:
  diffwave schedule
  diffwave schedule --full
  diffwave schedule -c config.yaml`,
	RunE: runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sched, err := cfg.BuildSchedule()
	if err != nil {
		return err
	}

	fmt.Printf("training schedule: %d steps\n", sched.Len())
	if scheduleFull {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "step\tbeta\talpha_cum")
		for i := 0; i < sched.Len(); i++ {
			fmt.Fprintf(w, "%d\t%.6f\t%.6f\n", i, sched.Beta(i), sched.AlphaCum(i))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(cfg.InferenceNoise) == 0 {
		fmt.Println("inference: full training schedule")
		return nil
	}

	steps, err := sched.InferenceSteps(cfg.InferenceNoise)
	if err != nil {
		return err
	}
	fmt.Printf("inference schedule: %d steps\n", len(steps))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "inference\tbeta\ttraining step")
	for i, s := range steps {
		fmt.Fprintf(w, "%d\t%.6f\t%d\n", i, cfg.InferenceNoise[i], s)
	}
	return w.Flush()
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleFull, "full", false, "print every training step")

	rootCmd.AddCommand(scheduleCmd)
}
