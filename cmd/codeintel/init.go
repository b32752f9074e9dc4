package main

import (
	"os"

	"github.com/spf13/cobra"

	"codeintel/internal/config"
	cierrors "codeintel/internal/errors"
	"codeintel/internal/paths"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize codeintel configuration",
	Long:  "Creates a .codeintel/ directory with default configuration in the project root (default: current directory)",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Force reinitialization (removes existing .codeintel directory)")
	rootCmd.AddCommand(initCmd)
}

// InitResponseCLI reports what init did.
type InitResponseCLI struct {
	Root       string `json:"root"`
	ConfigPath string `json:"configPath"`
	TracesDir  string `json:"tracesDir"`
	Created    bool   `json:"created"`
}

func runInit(cmd *cobra.Command, args []string) error {
	root := rootFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return cierrors.New(cierrors.InternalError, "failed to get current directory", err)
		}
		root = cwd
	}
	format, err := resolveFormat(formatFlag, os.Stdout)
	if err != nil {
		return err
	}
	e := &env{root: root, format: format, out: cmd.OutOrStdout()}

	resp := &InitResponseCLI{
		Root:       root,
		ConfigPath: paths.ConfigPath(root),
		TracesDir:  paths.TracesDir(root),
	}

	dataDir := paths.DataDir(root)
	if _, statErr := os.Stat(dataDir); statErr == nil {
		if !initForce {
			// Already initialized is success.
			return e.print(resp)
		}
		if removeErr := os.RemoveAll(dataDir); removeErr != nil {
			return cierrors.New(cierrors.InternalError, "failed to remove existing .codeintel directory", removeErr)
		}
	}

	if err := config.DefaultConfig().Save(root); err != nil {
		return cierrors.New(cierrors.InternalError, "failed to write config file", err)
	}
	if err := os.MkdirAll(resp.TracesDir, 0755); err != nil {
		return cierrors.New(cierrors.InternalError, "failed to create traces directory", err)
	}
	resp.Created = true
	return e.print(resp)
}
