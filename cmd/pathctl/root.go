package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-path/internal/catalog"
	"github.com/p-n-ai/pai-path/internal/learning"
)

type options struct {
	catalogDir   string
	outputFormat string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pathctl",
		Short: "Inspect the ordered learning path of a catalog",
		Long: `pathctl loads a catalog directory of chapter YAML files and workbooks
and prints what the engine derives from it:
  - the global topic order
  - the previous/next position of a topic
  - typed title search results`,
		SilenceUsage: true,
	}

	defaultDir := os.Getenv("LEARN_CATALOG_PATH")
	if defaultDir == "" {
		defaultDir = "./catalog"
	}
	root.PersistentFlags().StringVarP(
		&opts.catalogDir, "catalog", "c", defaultDir, "catalog directory (default: $LEARN_CATALOG_PATH or ./catalog)",
	)
	root.PersistentFlags().StringVarP(
		&opts.outputFormat, "output", "o", "text", "output format: text, json or yaml",
	)

	root.AddCommand(newOrderCmd(opts), newLocateCmd(opts), newSearchCmd(opts))
	return root
}

// load builds a library snapshot from the catalog directory.
func (o *options) load(cmd *cobra.Command) (*learning.Library, error) {
	lib := learning.NewLibrary(catalog.NewDirSource(o.catalogDir))
	if err := lib.Reload(cmd.Context()); err != nil {
		return nil, err
	}
	return lib, nil
}

// render writes v in the structured formats, or calls text otherwise.
func (o *options) render(w io.Writer, v any, text func(io.Writer)) error {
	switch o.outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	case "text", "":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", o.outputFormat)
	}
}
