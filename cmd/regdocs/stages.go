package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/regdocs/internal/pipeline"
)

// eachFile runs stage over every argument and prints the output paths.
func eachFile(cmd *cobra.Command, args []string, n needs, stage func(*pipeline.Runner, context.Context, string) (string, error)) error {
	a, err := newApp(cmd.Context(), n)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, in := range args {
		out, err := stage(a.runner, cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}

var extractCmd = &cobra.Command{
	Use:   "extract <document>...",
	Short: "Extract page records with chapter labels from source documents",
	Long: `Extract reads PDF, DOCX, HTML, Markdown, CSV or text documents and writes
{data_dir}/{stem}/{stem}_ekstrak.jsonl with one record per non-empty page.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachFile(cmd, args, needs{}, (*pipeline.Runner).Extract)
	},
}

var cleanseCmd = &cobra.Command{
	Use:   "cleanse <ekstrak.jsonl>...",
	Short: "Remove noise and boilerplate and re-derive chapter labels",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachFile(cmd, args, needs{}, (*pipeline.Runner).Cleanse)
	},
}

var chunkCmd = &cobra.Command{
	Use:   "chunk <cleansing.jsonl>...",
	Short: "Split page records into overlapping token windows",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachFile(cmd, args, needs{tokenizer: true}, (*pipeline.Runner).ChunkFile)
	},
}

var embedCmd = &cobra.Command{
	Use:   "embed <chunked.jsonl>...",
	Short: "Attach an embedding vector to every chunk",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachFile(cmd, args, needs{embedder: true}, (*pipeline.Runner).Embed)
	},
}

var loadReplace bool

var loadCmd = &cobra.Command{
	Use:   "load <embedding.jsonl>...",
	Short: "Insert embedded chunks into the vector collection",
	Long: `Load creates the collection for the vectors' dimension when it does not
exist and inserts every chunk. With --replace, the rows of each file named
in the input are deleted first so that a reload does not duplicate them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), needs{store: true})
		if err != nil {
			return err
		}
		defer a.Close()

		for _, in := range args {
			n, err := a.runner.Load(cmd.Context(), in, loadReplace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", in, n)
		}
		return nil
	},
}

var (
	runParallel int
	runReplace  bool
)

var runCmd = &cobra.Command{
	Use:   "run <document>...",
	Short: "Run every stage for one or more documents",
	Long: `Run extracts, cleanses, chunks, embeds and loads each document in order.
Documents are independent, so --parallel of them run at the same time.

Examples:
  regdocs run pedoman.pdf
  regdocs run --parallel 4 --replace docs/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), allNeeds)
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := a.runner.RunAll(cmd.Context(), args, runParallel, pipeline.RunOptions{Replace: runReplace})
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
			return err
		}
		logger.Info("embedding latency", "stats", a.stats.Snapshot())
		return nil
	},
}

func init() {
	loadCmd.Flags().BoolVar(&loadReplace, "replace", false, "delete the file's existing rows before inserting")

	runCmd.Flags().IntVar(&runParallel, "parallel", 1, "documents to process at the same time")
	runCmd.Flags().BoolVar(&runReplace, "replace", false, "delete each file's existing rows before loading")
}
