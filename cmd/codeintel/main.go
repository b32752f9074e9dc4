package main

import (
	"errors"
	"fmt"
	"os"

	cierrors "codeintel/internal/errors"
)

func main() {
	ctx, stop := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError writes err to stderr with any suggested fixes it carries.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ce *cierrors.CodeIntelError
	if errors.As(err, &ce) && len(ce.SuggestedFixes) > 0 {
		fmt.Fprintln(os.Stderr, "\nSuggested fixes:")
		for _, f := range ce.SuggestedFixes {
			switch {
			case f.Command != "":
				fmt.Fprintf(os.Stderr, "  $ %s\n", f.Command)
			case f.Tool != "":
				fmt.Fprintf(os.Stderr, "  install %s\n", f.Tool)
			}
			if f.Description != "" {
				fmt.Fprintf(os.Stderr, "    %s\n", f.Description)
			}
		}
	}
}
