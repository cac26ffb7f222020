package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions [base]",
	Short: "List stored versions",
	Long: `List the versions stored for every enabled changelog, newest first.
Pass a base to list a single changelog. Run 'changelogs build' first.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runVersions,
}

var versionsLimit int

func init() {
	versionsCmd.Flags().IntVarP(&versionsLimit, "n", "n", 0, "Limit the number of versions per changelog")
}

func runVersions(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	configs, entries, err := c.Builder.Entries()
	if err != nil {
		c.Close()
		exitOnError(err)
	}

	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	bold := color.New(color.Bold)

	found := false
	for _, lc := range configs {
		if !lc.Enabled || (len(args) == 1 && lc.Base != args[0]) {
			continue
		}
		found = true

		list := entries[lc.Base]
		bold.Printf("%s", lc.Base)
		fmt.Printf(" (%d versions)\n", len(list))
		if versionsLimit > 0 && len(list) > versionsLimit {
			list = list[:versionsLimit]
		}
		for _, e := range list {
			yellow.Printf("  %-20s", e.Title)
			if e.Date != nil {
				fmt.Printf(" %s", e.Date.Format("2006-01-02"))
			}
			if e.Latest {
				cyan.Print(" (latest)")
			}
			fmt.Println()
		}
	}

	if !found && len(args) == 1 {
		exitError("no enabled changelog with base %q", args[0])
	}
}
