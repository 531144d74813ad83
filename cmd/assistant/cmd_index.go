package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xaenox/proposal-assistant/internal/agents"
	"github.com/xaenox/proposal-assistant/internal/vectorstore"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector store that answers are grounded in",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a vector store and print its ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := vectorstore.New(newOpenAIClient(cfg), logger)
		info, err := store.CreateIndex(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printIndex(cmd.OutOrStdout(), info)
		fmt.Fprintf(cmd.OutOrStdout(), "\nSet VECTOR_STORE_ID=%s to use it.\n", info.ID)
		return nil
	},
}

var indexShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a vector store (defaults to VECTOR_STORE_ID)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := cfg.Retrieval.VectorStoreID
		if len(args) == 1 {
			id = args[0]
		}
		store := vectorstore.New(newOpenAIClient(cfg), logger)
		info, err := store.ShowIndex(cmd.Context(), id)
		if err != nil {
			return err
		}
		printIndex(cmd.OutOrStdout(), info)
		return nil
	},
}

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List the classification labels and the profile each routes to",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range agents.Profiles() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", p.Label, p.Name)
		}
	},
}

func init() {
	indexCmd.AddCommand(indexCreateCmd, indexShowCmd)
}

func printIndex(w io.Writer, info vectorstore.IndexInfo) {
	c := info.FileCounts
	fmt.Fprintf(w, "Vector store %s (%s)\n", info.ID, info.Name)
	fmt.Fprintf(w, "  status: %s\n", info.Status)
	fmt.Fprintf(w, "  usage: %s\n", humanize.Bytes(uint64(info.UsageBytes)))
	fmt.Fprintf(w, "  files: %d indexed, %d in progress, %d failed, %d total\n", c.Completed, c.InProgress, c.Failed, c.Total)
	if !info.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  created: %s\n", humanize.Time(info.CreatedAt))
	}
}
