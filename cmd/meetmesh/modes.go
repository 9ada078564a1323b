package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/meetmesh/mode"
)

func newModesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "modes",
		Short: "List the meeting modes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := mode.Catalog()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(catalog)
			}

			st := newStyles(cmd.OutOrStdout())
			var b strings.Builder
			for _, info := range catalog {
				rounds := fmt.Sprintf("up to %d rounds", info.MaxRounds)
				if info.FixedRounds {
					rounds = fmt.Sprintf("%d fixed rounds", info.MaxRounds)
				}
				fmt.Fprintf(&b, "%s  %s\n  %s\n", st.modeName.Render(info.Name), st.modeMeta.Render(rounds), info.Description)
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	return cmd
}
