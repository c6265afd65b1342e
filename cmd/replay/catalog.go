package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the challenge order and instructions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := liveness.DefaultCatalog()
			if err != nil {
				return err
			}
			return printCatalog(cmd.OutOrStdout(), catalog)
		},
	}
}

func printCatalog(w io.Writer, catalog *liveness.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCHALLENGE\tINSTRUCTION")
	for i := 0; i < catalog.Len(); i++ {
		ch, _ := catalog.At(i)
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, ch.ID, ch.Instruction)
	}
	return tw.Flush()
}
