// Package main is the entry point for the voiceprint CLI.
//
// Usage:
//
//	voiceprint [flags] <command> [args]
//
// Commands:
//
//	ubm       - Train a universal background model (K-Means + ML EM)
//	adapt     - MAP-adapt a GMM to feature files
//	stats     - Accumulate UBM statistics of one session
//	jfa, isv  - Train a JFA / ISV base machine from a manifest
//	enroll    - Enrol a speaker
//	score     - Score a session against an enrolled speaker
//	speakers  - List or delete enrolled speakers
package main

import (
	"fmt"
	"os"

	"github.com/ieee0824/voiceprint-go/cmd/voiceprint/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
