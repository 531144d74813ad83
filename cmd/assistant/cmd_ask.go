package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xaenox/proposal-assistant/internal/pipeline"
)

var (
	askPlain bool
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question and print the result",
	Example: `  assistant ask "What labor categories do we bid for help desk support?"
  assistant ask --plain=false --json "Summarize our CPARS ratings"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain := cfg.Output.PlainText
		if cmd.Flags().Changed("plain") {
			plain = askPlain
		}

		p, err := buildPipeline(cfg, newOpenAIClient(cfg), logger)
		if err != nil {
			return err
		}

		res, err := p.RunWithFormat(cmd.Context(), strings.Join(args, " "), plain)
		if err != nil {
			return err
		}
		if askJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askPlain, "plain", true, "strip markdown from the answer")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "Classification: %s (%s)\n\n", res.Label, res.Agent)
	fmt.Fprintln(w, res.Answer)

	if len(res.Citations) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, c := range res.Citations {
		source := c.SourceLabel
		if source == "" {
			source = c.FileRef
		}
		fmt.Fprintf(w, "  %d. %s", i+1, source)
		if c.Quote != "" {
			fmt.Fprintf(w, ": %q", c.Quote)
		}
		fmt.Fprintln(w)
	}
}
