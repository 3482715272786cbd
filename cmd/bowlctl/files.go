package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/JonMunkholm/bowlhouse/internal/importer"
	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the blank import template",
		Example: `  bowlctl template > menu.csv
  bowlctl template -o menu_items_template.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return catalog.WriteTemplate(cmd.OutOrStdout())
			}
			if err := os.WriteFile(output, catalog.Template(), 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check an import file without touching the catalog",
		Long: `Parse a CSV or XLSX import file and report every row. The command exits
with status 1 when any row is invalid.`,
		Example: `  bowlctl validate menu.csv
  bowlctl validate menu.xlsx --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := parseFile(args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else if err := writeReport(cmd.OutOrStdout(), result); err != nil {
				return err
			}

			if result.InvalidCount() > 0 {
				return errInvalidRows
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func parseFile(path string) (catalog.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return catalog.ImportResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	result, err := importer.ParseFile(filepath.Base(path), data)
	if err != nil {
		return catalog.ImportResult{}, fmt.Errorf("%s: %s", path, importer.FormatUserError(err))
	}
	return result, nil
}

// writeReport prints one line per row followed by the totals.
func writeReport(w io.Writer, result catalog.ImportResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tSTATUS\tDETAIL")
	for _, row := range result.Rows() {
		if row.Valid() {
			fmt.Fprintf(tw, "%d\tok\t%s (%s, %s)\n", row.Row, row.Product.Name, row.Product.Category, row.Product.BowlType)
			continue
		}
		fmt.Fprintf(tw, "%d\tinvalid\t%s\n", row.Row, row.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d rows: %d valid, %d invalid\n", result.Len(), result.ValidCount(), result.InvalidCount())
	return err
}
