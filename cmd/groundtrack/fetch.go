package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "load elements and rewrite the whole store",
	Long: `fetch obtains orbital elements from the configured source, computes the
current snapshot and the ±90 minute track from one instant, clears the store
and writes the full field set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.session.Fetch(cmd.Context(), cfg.NoradID, cfg.Creds); err != nil {
			return err
		}
		el, _ := a.session.Elements()
		fmt.Fprintf(cmd.OutOrStdout(), "fetched %s (NORAD %d, epoch %s)\n", el.Name, el.NORADID, el.Epoch)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringP("norad-id", "n", "25544", "NORAD catalogue id to fetch")
}
