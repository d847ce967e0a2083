// Package root assembles dvmctl's top-level command.
package root

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ToshinoriTsuboi/dma-virtual-memory/cmd/dvmctl/budget"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/cmd/dvmctl/sizeclass"
)

// NewCmd builds dvmctl's root command.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dvmctl",
		Short: "capacity-planning helper for the mf/vmf allocators",
		Long: "dvmctl prints the size-class table and engine memory accounting " +
			"a given (mem_min, mem_max, n_max, total_budget) quadruple would " +
			"produce, for sizing an engine before wiring it into a target.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.AddCommand(sizeclass.NewCmd(), budget.NewCmd())

	return cmd
}
