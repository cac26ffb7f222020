package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sidebarCmd = &cobra.Command{
	Use:   "sidebar",
	Short: "Resolve the configured sidebar links",
	Long: `Resolve the [[sidebar]] links of the config against the stored entries.

Examples:
  changelogs sidebar
  changelogs sidebar --locale fr --current /fr/changelog/
  changelogs sidebar --format json`,
	Run: runSidebar,
}

var (
	sidebarLocale  string
	sidebarCurrent string
	sidebarFormat  string
)

func init() {
	sidebarCmd.Flags().StringVar(&sidebarLocale, "locale", "", "Locale key to resolve links for (root when empty)")
	sidebarCmd.Flags().StringVar(&sidebarCurrent, "current", "", "Path of the current page, used to mark the current link")
	sidebarCmd.Flags().StringVarP(&sidebarFormat, "format", "f", "list", "Output format (list|json|yaml)")
}

func runSidebar(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	items, err := c.Builder.Sidebar(sidebarLocale, sidebarCurrent)
	if err != nil {
		c.Close()
		exitOnError(err)
	}

	if sidebarFormat != "list" {
		if err := render(os.Stdout, sidebarFormat, items); err != nil {
			exitError("%v", err)
		}
		return
	}

	if len(items) == 0 {
		fmt.Println("No sidebar links")
		return
	}
	green := color.New(color.FgGreen)
	for _, item := range items {
		if item.IsCurrent {
			green.Printf("* %s", item.Label)
		} else {
			fmt.Printf("  %s", item.Label)
		}
		color.New(color.Faint).Printf("  %s\n", item.Href)
	}
}
