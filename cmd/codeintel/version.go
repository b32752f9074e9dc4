package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeintel/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// VersionResponseCLI is the build identity of the binary.
type VersionResponseCLI struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	Display   string `json:"display"`
}

func runVersion(cmd *cobra.Command, args []string) error {
	format := FormatHuman
	if formatFlag != "" {
		format = OutputFormat(formatFlag)
	}
	out, err := FormatResponse(&VersionResponseCLI{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		Display:   version.Info(),
	}, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
