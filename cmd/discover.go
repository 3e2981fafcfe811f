package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/USA-RedDragon/crashgate/internal/platform"
	"github.com/USA-RedDragon/crashgate/internal/symbols"
	"github.com/USA-RedDragon/crashgate/internal/unity"
	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
)

var ErrUnsupportedTarget = errors.New("symbol discovery is not supported for this target")

func newDiscoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the symbol files a postbuild run would upload",
		RunE:  runDiscover,
	}
	cmd.Flags().String(targetFlag, platform.DesktopX64.String(), "Build target")
	return cmd
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	targetName, _ := cmd.Flags().GetString(targetFlag)
	target := platform.ParseTarget(targetName)
	arch, ok := target.PluginArch()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedTarget, targetName)
	}

	artifacts, err := symbols.Discover(unity.PluginsDir(cfg.Project.Directory, arch), target.SymbolExtensions())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, artifact := range artifacts {
		fmt.Fprintf(w, "%s\t%d\n", artifact.Path, artifact.Size)
	}
	return w.Flush()
}
