package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/jobfit-research/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models [name]",
	Short: "Show the model registry and fallback chains",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("models"); err != nil {
			return err
		}
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		clients, err := llm.NewClientSet(context.WithoutCancel(cmd.Context()), cfg.LLM)
		if err != nil {
			return eris.Wrap(err, "init model clients")
		}

		names := reg.Names()
		if len(args) == 1 {
			if _, ok := reg.Get(args[0]); !ok {
				return eris.Wrapf(llm.ErrUnknownModel, "model %q", args[0])
			}
			names = args
		}
		return printModels(cmd.OutOrStdout(), reg, clients, names)
	},
}

// printModels writes one row per model with its resolved fallback chain.
// Chain members whose provider has no client are marked with "!".
func printModels(w io.Writer, reg *llm.Registry, clients *llm.ClientSet, names []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPROVIDER\tMODEL\tCHAIN")
	for _, name := range names {
		spec, _ := reg.Get(name)
		chain := reg.Chain(name)
		parts := make([]string, len(chain))
		for i, c := range chain {
			parts[i] = c.Name
			if _, ok := clients.Get(c.Provider); !ok {
				parts[i] += "!"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", spec.Name, spec.Provider, spec.Model, strings.Join(parts, " -> "))
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
