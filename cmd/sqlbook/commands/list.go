package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-andiamo/sqlbook"
	"github.com/go-andiamo/sqlbook/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type queryInfo struct {
	Path    string `json:"path" yaml:"path"`
	Kind    string `json:"kind" yaml:"kind"`
	Dialect string `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	Record  string `json:"record,omitempty" yaml:"record,omitempty"`
	Source  string `json:"source" yaml:"source"`
	Line    int    `json:"line" yaml:"line"`
	Doc     string `json:"doc,omitempty" yaml:"doc,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List the queries of a sql file or directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := staticDriver(app.Config.Driver)
			if err != nil {
				return err
			}
			r, err := app.loadRegistry(app.sourcePath(args), driver)
			if err != nil {
				return err
			}
			return writeQueries(cmd.OutOrStdout(), listQueries(r), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, yaml or json")

	return cmd
}

func listQueries(r *sqlbook.Registry) []queryInfo {
	result := make([]queryInfo, 0, r.Root().Len())
	_ = r.Walk(func(q *sqlbook.Query) error {
		def := q.Definition()
		result = append(result, queryInfo{
			Path:    q.Path(),
			Kind:    def.Kind.String(),
			Dialect: def.Dialect,
			Record:  def.RecordType,
			Source:  def.Source,
			Line:    def.Line,
			Doc:     def.Doc,
		})
		return nil
	})
	return result
}

func writeQueries(w io.Writer, queries []queryInfo, output string) error {
	switch strings.ToLower(output) {
	case "", "table":
		rows := make([][]string, 0, len(queries))
		for _, q := range queries {
			rows = append(rows, []string{q.Path, q.Kind, q.Dialect, q.Record, firstLine(q.Doc)})
		}
		return ui.PrintTable(w, []string{"Query", "Kind", "Dialect", "Record", "Doc"}, rows)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(queries); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(queries)
	}
	return fmt.Errorf("unknown output format %q (expected table, yaml or json)", output)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
