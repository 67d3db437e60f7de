package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formengine/pkg/graph"
	"github.com/goliatone/go-formengine/pkg/schema"
)

func newValidateCmd(a *app) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <schema>...",
		Short: "Check schema files for structural errors and rule warnings",
		Long: `Validate parses each schema, checks its structure and builds the
dependency graph. Structural errors fail the command; graph warnings (unknown
references, cycles, conflicting rules) are printed and only fail with --strict.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				idx, err := loadIndex(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s %s\n", crossMark, path)
					var schemaErr *schema.SchemaError
					if errors.As(err, &schemaErr) && len(schemaErr.Issues) > 0 {
						for _, issue := range schemaErr.Issues {
							fmt.Fprintf(out, "    %s\n", issue)
						}
					} else {
						fmt.Fprintf(out, "    %v\n", err)
					}
					continue
				}

				warnings := graph.Build(idx, a.logger).Warnings()
				mark := checkMark
				if strict && len(warnings) > 0 {
					mark = crossMark
					failed++
				}
				fmt.Fprintf(out, "%s %s (%s, %d fields)\n", mark, path, idx.FormID(), idx.Len())
				for _, w := range warnings {
					fmt.Fprintf(out, "    warning: %s\n", w)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d schemas invalid", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat graph warnings as errors")
	return cmd
}

func loadIndex(path string) (*schema.Index, error) {
	form, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return schema.NewIndex(form)
}
