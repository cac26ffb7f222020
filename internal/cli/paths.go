package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Print the static paths of the stored changelogs",
	Long: `Generate the static paths from the stored entries and print them.

Formats:
  json     the manifest as written by 'changelogs build'
  yaml     the same document as YAML
  list     one route per line`,
	Run: runPaths,
}

var pathsFormat string

func init() {
	pathsCmd.Flags().StringVarP(&pathsFormat, "format", "f", "list", "Output format (list|json|yaml)")
}

func runPaths(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	generated, err := c.Builder.Generate()
	if err != nil {
		c.Close()
		exitOnError(err)
	}

	if pathsFormat == "list" {
		cyan := color.New(color.FgCyan)
		for _, p := range generated {
			cyan.Printf("%-9s", p.Props.Type)
			fmt.Printf(" %s\n", p.Params.Slug)
		}
		return
	}
	if err := render(os.Stdout, pathsFormat, generated); err != nil {
		exitError("%v", err)
	}
}

// render writes v as JSON or YAML. YAML goes through the JSON encoding so both
// formats share field names and custom marshalers.
func render(w io.Writer, format string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	switch format {
	case "json":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		var doc interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (expected json or yaml)", format)
	}
}
