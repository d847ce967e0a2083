// Package budget implements dvmctl's "budget" subcommand: estimate the
// metadata byte widths and directory footprint mf.Init/vmf.Init would
// settle on for a given (mem_min, mem_max, n_max, total_budget), without
// actually constructing an engine.
package budget

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ToshinoriTsuboi/dma-virtual-memory/bitcodec"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/engineconfig"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/sizeclass"
)

const minPhysicalPageSize = 4096

// NewCmd builds the "budget" subcommand.
func NewCmd() *cobra.Command {
	var (
		memMin, memMax, nMax, totalBudget int
	)

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "estimate mf/vmf metadata footprint for a given init quadruple",
		RunE: func(cmd *cobra.Command, args []string) error {
			if memMin <= 0 || memMin > memMax {
				return fmt.Errorf("require 0 < mem-min <= mem-max")
			}

			table := sizeclass.NewGeometric(engineconfig.GeometricClasses().K,
				engineconfig.GeometricClasses().Max, 1, engineconfig.GeometricClasses().BinarySearchIters)
			scMin := table.Size2Class(memMin)
			scMax := table.Size2Class(memMax)
			classCount := scMax - scMin + 1

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "size classes: %d (class %d..%d)\n", classCount, scMin, scMax)

			idByte := bitcodec.RequiredBytes(uint64(nMax))
			ofsByte := bitcodec.RequiredBytes(uint64(totalBudget + idByte*nMax))
			scByte := bitcodec.RequiredBytes(uint64(classCount + 1))
			mfDirBytes := (scByte + ofsByte) * nMax
			fmt.Fprintf(out, "mf:  id_byte=%d ofs_byte=%d sc_byte=%d directory=%d bytes\n",
				idByte, ofsByte, scByte, mfDirBytes)

			blockIDByte := bitcodec.RequiredBytes(uint64(nMax + 1))
			pageByte := bitcodec.RequiredBytes(uint64(
				(blockIDByte*nMax + totalBudget + minPhysicalPageSize - 1) / minPhysicalPageSize))
			if blockIDByte > pageByte {
				pageByte = blockIDByte
			}
			physicalPageSize := physicalPageSizeFor(table.ClassSize(scMax) + blockIDByte)
			mmapSize := bitcodec.AlignUp(totalBudget*4, physicalPageSize)
			maxPages := mmapSize / physicalPageSize
			vmfOfsByte := bitcodec.RequiredBytes(uint64(physicalPageSize))
			elemDirBytes := (vmfOfsByte + pageByte) * nMax
			pageDirBytes := (2*pageByte + 2*vmfOfsByte) * maxPages
			fmt.Fprintf(out, "vmf: blockid_byte=%d page_byte=%d physical_page_size=%d max_pages=%d "+
				"elem_directory=%d page_directory=%d bytes\n",
				blockIDByte, pageByte, physicalPageSize, maxPages, elemDirBytes, pageDirBytes)

			return nil
		},
	}

	cmd.Flags().IntVar(&memMin, "mem-min", 16, "smallest block size in bytes")
	cmd.Flags().IntVar(&memMax, "mem-max", 4096, "largest block size in bytes")
	cmd.Flags().IntVar(&nMax, "n-max", 64, "maximum number of live block ids")
	cmd.Flags().IntVar(&totalBudget, "total-budget", 262144, "total byte budget across all allocations")

	return cmd
}

// physicalPageSizeFor mirrors vmf's module_set_pagesize doubling loop.
func physicalPageSizeFor(maxSize int) int {
	pageSize := minPhysicalPageSize
	size := maxSize / minPhysicalPageSize
	for size > 0 {
		size /= 2
		pageSize *= 2
	}
	return pageSize
}
