package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "print the stored state",
	Long:  `show prints every stored key as one JSON object, or the raw value of a single key.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			v, err := a.store.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(out, string(v))
			return nil
		}

		keys, err := a.store.Keys(ctx)
		if err != nil {
			return err
		}
		state := make(map[string]json.RawMessage, len(keys))
		for _, k := range keys {
			v, err := a.store.Get(ctx, k)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			state[k] = v
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
