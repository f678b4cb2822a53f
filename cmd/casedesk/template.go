package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/casedesk/internal/builder"
	"github.com/matthewbaird/casedesk/internal/form"
	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// errTemplateInvalid is returned by `template check` when problems were
// reported, so the exit status is non-zero.
var errTemplateInvalid = errors.New("template has problems")

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Inspect template files (JSON or YAML)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "check <file>",
			Short: "Report missing titles, unsupported field types and duplicate names",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tpl, err := loadTemplate(args[0])
				if err != nil {
					return err
				}
				return checkTemplate(cmd.OutOrStdout(), tpl)
			},
		},
		&cobra.Command{
			Use:   "schema <file>",
			Short: "Print the CUE validation schema of a template",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tpl, err := loadTemplate(args[0])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), form.Materialize(tpl, render.ByName).Rules.Schema.Source())
				return err
			},
		},
		&cobra.Command{
			Use:   "defaults <file>",
			Short: "Print the initial form values of a template as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tpl, err := loadTemplate(args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(form.DefaultValues(tpl))
			},
		},
	)
	return cmd
}

// loadTemplate reads a template file. JSON documents parse as YAML too.
func loadTemplate(path string) (types.Template, error) {
	var tpl types.Template
	data, err := os.ReadFile(path)
	if err != nil {
		return tpl, fmt.Errorf("reading template: %w", err)
	}
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return tpl, fmt.Errorf("parsing template %s: %w", path, err)
	}
	return tpl.Ordered(), nil
}

// checkTemplate prints one line per problem. Duplicate field names are
// warnings since duplicates share a value; everything else fails the check.
func checkTemplate(w io.Writer, tpl types.Template) error {
	failed := false
	for _, p := range builder.EditDraft(tpl).Validate() {
		fmt.Fprintf(w, "error: %s: %s\n", p.Path, p.Message)
		failed = true
	}
	for gi, g := range tpl.Groups {
		if len(g.Fields) == 0 {
			fmt.Fprintf(w, "error: groups[%d]: group has no fields\n", gi)
			failed = true
		}
		for fi, f := range g.Fields {
			path := fmt.Sprintf("groups[%d].fields[%d]", gi, fi)
			if !f.FieldType.Known() {
				fmt.Fprintf(w, "error: %s: unsupported field type %q\n", path, f.FieldType)
				failed = true
			}
			if f.FieldName == "" {
				fmt.Fprintf(w, "error: %s: fieldName is empty\n", path)
				failed = true
			}
		}
	}
	for _, name := range form.Duplicates(tpl) {
		fmt.Fprintf(w, "warning: field name %q is used more than once; those fields share one value\n", name)
	}
	if failed {
		return errTemplateInvalid
	}
	fmt.Fprintf(w, "ok: %q has %d groups and %d fields\n", tpl.Title, len(tpl.Groups), tpl.FieldCount())
	return nil
}
