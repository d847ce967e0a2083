package main

import (
	"os"

	"github.com/ToshinoriTsuboi/dma-virtual-memory/cmd/dvmctl/root"
)

func main() {
	if err := root.NewCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
