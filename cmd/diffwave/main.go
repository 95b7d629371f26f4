// Package main is the entry point for the diffwave CLI.
//
// Usage:
//
//	diffwave [flags] <command> [args]
//
// Commands:
//
//	synth     - Generate a waveform with a trained model
//	features  - Precompute spectrogram features for a corpus
//	schedule  - Inspect the noise schedule and fast-sampling mapping
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/diffwave/cmd/diffwave/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
