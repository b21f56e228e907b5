package main

import (
	"encoding/json"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/couchgen/internal/obs"
	"github.com/kuitang/couchgen/internal/template"
	"github.com/kuitang/couchgen/pkg/strategy"
)

type sampleOptions struct {
	template string
	count    int
	seed     uint64
}

func newSampleCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &sampleOptions{}

	cmd := &cobra.Command{
		Use:   "sample --template FILE",
		Short: "Print random documents drawn from a template",
		Long: `Draw documents from a YAML template and print them as JSON lines.

Template fields name strategies: ` + strings.Join(template.Names(), ", ") + `.
The same --seed always prints the same documents.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("seed") {
				opts.seed = rand.Uint64()
			}
			return runSample(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "template file (YAML)")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 10, "number of documents")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed (default: random)")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func runSample(cmd *cobra.Command, opts *sampleOptions) error {
	tmpl, err := template.Load(opts.template)
	if err != nil {
		return err
	}
	docs, err := tmpl.Compile()
	if err != nil {
		return err
	}
	if opts.count < 0 {
		opts.count = 0
	}
	obs.Pkg(cmd.Context(), "couchgen").Info("sample_start", "template", opts.template, "count", opts.count, "seed", opts.seed)

	examples, err := strategy.Examples(docs, opts.count, opts.seed)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	for _, doc := range examples {
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return nil
}
