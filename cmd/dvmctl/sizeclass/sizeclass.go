// Package sizeclass implements dvmctl's "sizeclass" subcommand: print the
// geometric or exact size-class table an engine would build.
package sizeclass

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ToshinoriTsuboi/dma-virtual-memory/engineconfig"
	sc "github.com/ToshinoriTsuboi/dma-virtual-memory/sizeclass"
)

// NewCmd builds the "sizeclass" subcommand.
func NewCmd() *cobra.Command {
	var (
		memMin, memMax int
		exact          bool
		align          int
		k              float64
		max            int
		searchIters    int
	)

	cmd := &cobra.Command{
		Use:   "sizeclass",
		Short: "print the size-class table covering [mem-min, mem-max]",
		RunE: func(cmd *cobra.Command, args []string) error {
			if memMin <= 0 || memMin > memMax {
				return fmt.Errorf("require 0 < mem-min <= mem-max")
			}

			mode := engineconfig.ClassMode{
				Exact: exact, Align: align,
				K: k, Max: max, BinarySearchIters: searchIters,
			}
			table := buildTable(mode)

			scMin := table.Size2Class(memMin)
			scMax := table.Size2Class(memMax)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %-10s\n", "class", "bytes")
			for class := scMin; class <= scMax; class++ {
				fmt.Fprintf(out, "%-8d %-10d\n", class, table.ClassSize(class))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&memMin, "mem-min", 16, "smallest block size in bytes")
	cmd.Flags().IntVar(&memMax, "mem-max", 4096, "largest block size in bytes")
	cmd.Flags().BoolVar(&exact, "exact", false, "use exact (every multiple of align) classes instead of geometric")
	cmd.Flags().IntVar(&align, "align", 1, "alignment for exact classes")
	cmd.Flags().Float64Var(&k, "k", engineconfig.GeometricClasses().K, "geometric growth constant")
	cmd.Flags().IntVar(&max, "max", engineconfig.GeometricClasses().Max, "geometric table size")
	cmd.Flags().IntVar(&searchIters, "search-iters", engineconfig.GeometricClasses().BinarySearchIters,
		"binary search depth for size2class lookups")

	return cmd
}

func buildTable(mode engineconfig.ClassMode) *sc.Table {
	if mode.Exact {
		return sc.NewExact(mode.Align)
	}
	return sc.NewGeometric(mode.K, mode.Max, 1, mode.BinarySearchIters)
}
