package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formengine/pkg/openapi"
)

func newImportOpenAPICmd(a *app) *cobra.Command {
	var (
		format   string
		output   string
		formID   string
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "import-openapi <document> [operationId]",
		Short: "Generate a form schema from an OpenAPI operation",
		Long: `Import converts the request body of an OpenAPI 3 operation into a form
schema. Without an operationId the operations of the document are listed.

Examples:
  formengine import-openapi api.yaml
  formengine import-openapi api.yaml createAccount -o yaml -f schemas/account.yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			opts := []openapi.Option{
				openapi.WithLogger(a.logger),
				openapi.WithValidation(validate),
				openapi.WithFormID(formID),
			}

			if len(args) == 1 {
				ops, err := openapi.Operations(cmd.Context(), raw, opts...)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "OPERATION\tMETHOD\tPATH\tBODY")
				for _, op := range ops {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", op.ID, op.Method, op.Path, op.HasBody)
				}
				return tw.Flush()
			}

			form, err := openapi.FromOperation(cmd.Context(), raw, args[1], opts...)
			if err != nil {
				return err
			}
			w, closeFn, err := writerOrStdout(cmd, output)
			if err != nil {
				return err
			}
			if err := encode(w, format, form); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "file", "f", "", "write the schema to a file instead of stdout")
	cmd.Flags().StringVar(&formID, "form-id", "", "form id, defaults to the operation id")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate the OpenAPI document first")
	return cmd
}
