package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/groundtrack/internal/passes"
)

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "predict passes of the stored satellite over the ground station",
	Long: `passes resumes the elements in the store and prints the passes over the
ground station that start within the next --hours, as JSON.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()
		hours, _ := f.GetInt("hours")
		minEl, _ := f.GetFloat64("min-elevation")
		maxPasses, _ := f.GetInt("max")

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.session.Resume(ctx); err != nil {
			return err
		}
		el, _ := a.session.Elements()

		found, err := a.predictor.Predict(ctx, el, passes.Request{
			Start:        a.session.Now().Truncate(time.Second),
			Horizon:      time.Duration(hours) * time.Hour,
			MinElevation: minEl,
			MaxPasses:    maxPasses,
		})
		if err != nil {
			return err
		}
		logger.Debug("passes predicted", "norad_id", el.NORADID, "count", len(found))

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	},
}

func init() {
	rootCmd.AddCommand(passesCmd)
	passesCmd.Flags().Int("hours", 24, "prediction window in hours")
	passesCmd.Flags().Float64("min-elevation", 0, "minimum elevation in degrees")
	passesCmd.Flags().Int("max", 10, "maximum number of passes")
}
