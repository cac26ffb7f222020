package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/changelogs/internal/core"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Load every changelog and generate the static paths",
	Long: `Load every enabled changelog into the entry store, prune changelogs that
were removed or disabled, and write the loader config and the static paths
manifest to the output directory.

Remote sources are fetched conditionally: an unchanged upstream answers
304 Not Modified and the stored entries are kept.`,
	Run: runBuild,
}

var (
	buildMetricsFile string
	buildJSON        bool
)

func init() {
	buildCmd.Flags().StringVar(&buildMetricsFile, "metrics-file", "", "Write build metrics in Prometheus text format to this file")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the build report as JSON")
}

func runBuild(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx, stop := signalContext()
	defer stop()

	report, err := c.Builder.Build(ctx)
	if err != nil {
		c.Close()
		exitOnError(err)
	}

	if buildMetricsFile != "" {
		if err := writeMetrics(c.Builder, buildMetricsFile); err != nil {
			exitError("failed to write metrics: %v", err)
		}
	}

	if buildJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			exitError("failed to marshal report: %v", err)
		}
		fmt.Println(string(data))
		return
	}
	printReport(report)
}

func writeMetrics(b *core.Builder, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	b.WriteMetrics(f)
	return f.Close()
}

func printReport(report *core.Report) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	faint := color.New(color.Faint)

	for _, src := range report.Sources {
		if !src.Modified {
			faint.Printf("  unchanged  %s (%s)\n", src.Base, src.Source)
			continue
		}
		green.Printf("  %-9s  ", src.Mode)
		fmt.Printf("%s (%s): %d written", src.Base, src.Source, src.Written)
		if src.Unchanged > 0 || src.Removed > 0 {
			fmt.Printf(", %d unchanged, %d removed", src.Unchanged, src.Removed)
		}
		fmt.Println()
	}
	for _, base := range report.Pruned {
		yellow.Printf("  pruned     %s\n", base)
	}

	fmt.Printf("\n%d paths generated", report.Paths)
	if !report.ManifestWritten {
		fmt.Print(" (manifest unchanged)")
	}
	fmt.Printf(" in %s\n", report.Duration.Round(time.Millisecond))
}
