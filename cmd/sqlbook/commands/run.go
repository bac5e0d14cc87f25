package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-andiamo/sqlbook"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(app *App) *cobra.Command {
	var (
		params  []string
		rawArgs string
	)

	cmd := &cobra.Command{
		Use:   "run <query.path>",
		Short: "Call a query against a database and print the result as JSON",
		Long: `Call a query against a database and print the result as JSON

arguments are given as named parameters (-p name=value, repeatable) or as JSON (--args),
a JSON object binds named parameters, a JSON array binds positional parameters
(or parameter sets for a bulk query)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qArgs, err := queryArgs(params, rawArgs)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, driver, err := openDatabase(ctx, app.Config.Driver, app.Config.DSN)
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()
			r, err := app.loadRegistry(app.Config.Path, driver)
			if err != nil {
				return err
			}
			q, err := r.Variant(args[0])
			if err != nil {
				return err
			}
			result, err := q.Call(ctx, db, qArgs)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "named parameter as name=value")
	cmd.Flags().StringVar(&rawArgs, "args", "", "parameters as JSON")

	return cmd
}

// queryArgs builds the call arguments from -p name=value flags or a JSON --args
func queryArgs(params []string, rawArgs string) (any, error) {
	if rawArgs != "" {
		if len(params) > 0 {
			return nil, errors.New("--param and --args cannot be combined")
		}
		dec := json.NewDecoder(strings.NewReader(rawArgs))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("invalid --args: %w", err)
		}
		switch v.(type) {
		case map[string]any, []any:
			return v, nil
		}
		return nil, errors.New("invalid --args: expected a JSON object or array")
	}
	if len(params) == 0 {
		return nil, nil
	}
	named := sqlbook.Named{}
	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected name=value)", p)
		}
		named[name] = value
	}
	return named, nil
}

func writeResult(w io.Writer, result any) error {
	if c, ok := result.(*sqlbook.Cursor); ok {
		rows, err := c.FetchAll()
		_ = c.Close()
		if err != nil {
			return err
		}
		result = rows
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
