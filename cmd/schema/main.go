package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/amalg/go-gridchase/internal/network"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "docs/protocol.schema.json", "Path to write the protocol JSON schema")
	flag.Parse()

	if err := network.WriteSchema(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", outPath)
}
