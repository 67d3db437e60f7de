package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formengine/pkg/graph"
)

type graphReport struct {
	FormID       string              `json:"formId" yaml:"formId"`
	Order        []string            `json:"order" yaml:"order"`
	Dependencies map[string][]string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Lookups      map[string][]string `json:"lookupDependents,omitempty" yaml:"lookupDependents,omitempty"`
	Cycles       [][]string          `json:"cycles,omitempty" yaml:"cycles,omitempty"`
	Warnings     []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newGraphCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <schema>",
		Short: "Print the field dependency graph of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex(args[0])
			if err != nil {
				return err
			}
			report := buildReport(graph.Build(idx, a.logger))
			if format == "text" {
				return writeReport(cmd.OutOrStdout(), report)
			}
			return encode(cmd.OutOrStdout(), format, report)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func buildReport(g *graph.Graph) graphReport {
	report := graphReport{
		FormID:       g.Index().FormID(),
		Order:        g.Order(),
		Dependencies: make(map[string][]string),
		Lookups:      make(map[string][]string),
		Cycles:       g.Cycles(),
	}
	for _, id := range g.Index().IDs() {
		if deps := g.Dependencies(id); len(deps) > 0 {
			report.Dependencies[id] = deps
		}
		if deps := g.LookupDependents(id); len(deps) > 0 {
			report.Lookups[id] = deps
		}
	}
	for _, w := range g.Warnings() {
		report.Warnings = append(report.Warnings, w.String())
	}
	return report
}

func writeReport(w io.Writer, r graphReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "form %s\n\nevaluation order:\n", r.FormID)
	for i, id := range r.Order {
		fmt.Fprintf(&b, "  %2d. %s", i+1, id)
		if deps := r.Dependencies[id]; len(deps) > 0 {
			fmt.Fprintf(&b, " <- %s", strings.Join(deps, ", "))
		}
		if deps := r.Lookups[id]; len(deps) > 0 {
			fmt.Fprintf(&b, " (lookups: %s)", strings.Join(deps, ", "))
		}
		b.WriteByte('\n')
	}
	if len(r.Cycles) > 0 {
		b.WriteString("\ncycles:\n")
		for _, cycle := range r.Cycles {
			fmt.Fprintf(&b, "  %s\n", strings.Join(cycle, " -> "))
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\nwarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
