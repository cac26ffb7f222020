package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sample changelogs config",
	Long: `Create a sample changelogs.toml in the current directory (or at --config).
The sample loads the GitHub releases of a repository and adds two sidebar links.`,
	Run: runInit,
}

func runInit(cmd *cobra.Command, args []string) {
	cfg, err := config.Initialize(configPath)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	color.New(color.FgGreen).Printf("Created %s\n", cfg.Path())
	fmt.Printf("\nEdit the [[changelogs]] entries, then run 'changelogs build'.\n")
	fmt.Printf("GitHub sources read their token from $%s when set.\n", cfg.Changelogs[0].TokenEnv)
}
