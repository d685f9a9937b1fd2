package main

import (
	"context"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "recompute part of the stored state",
	Long: `refresh recomputes either the snapshot or the sampled track for the
elements already in the store, overwriting only those keys.`,
}

var refreshSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "recompute lat/long/altitude and azimuth/elevation/range",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return refresh(cmd.Context(), func(a *app, ctx context.Context) error {
			return a.session.RefreshSnapshot(ctx)
		})
	},
}

var refreshSeriesCmd = &cobra.Command{
	Use:   "series",
	Short: "resample the ±90 minute track",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return refresh(cmd.Context(), func(a *app, ctx context.Context) error {
			return a.session.RefreshSeries(ctx)
		})
	},
}

func refresh(ctx context.Context, fn func(*app, context.Context) error) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.session.Resume(ctx); err != nil {
		return err
	}
	return fn(a, ctx)
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.AddCommand(refreshSnapshotCmd, refreshSeriesCmd)
}
