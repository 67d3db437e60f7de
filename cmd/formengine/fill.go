package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formengine/internal/config"
	"github.com/goliatone/go-formengine/pkg/lookup"
	"github.com/goliatone/go-formengine/pkg/prompt"
	"github.com/goliatone/go-formengine/pkg/runtime"
	"github.com/goliatone/go-formengine/pkg/schema"
)

func newFillCmd(a *app) *cobra.Command {
	var (
		format string
		output string
		sets   []string
	)

	cmd := &cobra.Command{
		Use:   "fill <schema>",
		Short: "Fill a form interactively and print the submitted values",
		Long: `Fill asks for every visible field in order. Fields revealed by an answer are
asked next; invalid answers are asked again. Remote lookups resolve against
lookup.base_url.

Examples:
  formengine fill schemas/registration.json
  formengine fill schemas/registration.json --set userType=business -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := schema.LoadFile(args[0])
			if err != nil {
				return err
			}
			initial, err := parseSets(sets)
			if err != nil {
				return err
			}

			in, err := runtime.New(form,
				runtime.WithLogger(a.logger),
				runtime.WithFetcher(newFetcher(a.cfg.Lookup, "")),
				runtime.WithLookupTimeout(a.cfg.Lookup.Timeout),
				runtime.WithValidatorTimeout(a.cfg.Runtime.ValidatorTimeout),
				runtime.WithInitialValues(initial),
			)
			if err != nil {
				return err
			}
			defer in.Close()

			result, fillErr := prompt.NewFiller(prompt.NewSurveyDriver(), prompt.WithLogger(a.logger)).Fill(cmd.Context(), in)
			if fillErr != nil && !result.OK && result.Errors == nil {
				return fillErr
			}

			w, closeFn, err := writerOrStdout(cmd, output)
			if err != nil {
				return err
			}
			if err := encode(w, format, result); err != nil {
				_ = closeFn()
				return err
			}
			if err := closeFn(); err != nil {
				return err
			}
			return fillErr
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "file", "f", "", "write the result to a file instead of stdout")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "initial value as field=value (repeatable)")
	return cmd
}

// parseSets decodes field=value pairs. Values are YAML scalars, so numbers and
// booleans keep their type.
func parseSets(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want field=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}

// newFetcher builds the HTTP lookup fetcher. fallbackBase applies when the
// configuration leaves base_url empty.
func newFetcher(cfg config.LookupConfig, fallbackBase string) *lookup.HTTPFetcher {
	base := cfg.BaseURL
	if base == "" {
		base = fallbackBase
	}
	opts := []lookup.HTTPOption{lookup.WithRequestTimeout(cfg.Timeout)}
	if base != "" {
		opts = append(opts, lookup.WithBaseURL(base))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, lookup.WithRateLimit(cfg.RateLimit, cfg.Burst))
	}
	return lookup.NewHTTPFetcher(opts...)
}
