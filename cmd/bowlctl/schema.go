package main

import (
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/JonMunkholm/bowlhouse/internal/importer"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

const schemaDraft = "https://json-schema.org/draft/2020-12/schema"

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the import API types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := json.MarshalIndent(apiSchema(), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal schema: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return err
		},
	}
}

// apiSchema merges the definitions of every API type into one document.
func apiSchema() map[string]any {
	reflector := &jsonschema.Reflector{}

	defs := make(map[string]*jsonschema.Schema)
	for _, t := range []any{
		catalog.Product{},
		catalog.RowOutcome{},
		importer.Outcome{},
	} {
		schema := reflector.Reflect(t)
		for name, def := range schema.Definitions {
			defs[name] = def
		}
	}

	return map[string]any{
		"$schema": schemaDraft,
		"$id":     "https://bowlhouse.example/schemas/import.json",
		"title":   "bowlhouse product import",
		"$defs":   defs,
	}
}
