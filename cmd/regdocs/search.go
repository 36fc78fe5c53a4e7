package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/regdocs/internal/retrieval"
	"github.com/dgallion1/regdocs/internal/vectorstore"
)

// filterFlags binds the metadata filter flags shared by search and query.
type filterFlags struct {
	fileName  string
	page      int
	bookmark  string
	chapter   string
	text      string
	hasTables bool
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.fileName, "file", "", "only rows of this file name")
	fs.IntVar(&f.page, "page", 0, "only rows of this page number")
	fs.StringVar(&f.bookmark, "bookmark", "", "only rows with this bookmark, e.g. \"BAB II\"")
	fs.StringVar(&f.chapter, "chapter", "", "only rows whose chapter title contains this text")
	fs.StringVar(&f.text, "contains", "", "only rows whose text contains this text")
	fs.BoolVar(&f.hasTables, "has-tables", false, "only rows with (true) or without (false) tables")
}

func (f *filterFlags) filter(cmd *cobra.Command) vectorstore.Filter {
	out := vectorstore.Filter{
		FileName:             f.fileName,
		PageNumber:           f.page,
		Bookmark:             f.bookmark,
		ChapterTitleContains: f.chapter,
		TextContains:         f.text,
	}
	if cmd.Flags().Changed("has-tables") {
		v := f.hasTables
		out.HasTables = &v
	}
	return out
}

var (
	searchFilter         filterFlags
	searchTopK           int
	searchThreshold      float64
	searchGroup          bool
	searchGroupThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Hybrid search: vector similarity restricted by metadata",
	Long: `Search embeds the question, returns the top-k most similar rows that pass
the metadata filter, and marks the ones at or above the threshold as
relevant. When none is relevant the best hit is reported instead.

Examples:
  regdocs search "kewajiban pegawai"
  regdocs search --file pedoman.pdf --bookmark "BAB II" "jam kerja"
  regdocs search --group --top-k 20 "sanksi"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), needs{embedder: true, store: true})
		if err != nil {
			return err
		}
		defer a.Close()

		req := retrieval.SearchRequest{
			Query:          strings.Join(args, " "),
			Filter:         searchFilter.filter(cmd),
			TopK:           cfg.Search.TopK,
			Threshold:      cfg.Search.Threshold,
			Group:          searchGroup,
			GroupThreshold: cfg.Search.GroupThreshold,
		}
		if cmd.Flags().Changed("top-k") {
			req.TopK = searchTopK
		}
		if cmd.Flags().Changed("threshold") {
			req.Threshold = searchThreshold
		}
		if cmd.Flags().Changed("group-threshold") {
			req.GroupThreshold = searchGroupThreshold
		}

		svc := retrieval.NewService(a.runner.Store, a.runner.Embedder, logger)
		res, err := svc.Search(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var (
	queryFilter filterFlags
	queryLimit  int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List rows by metadata only",
	Long: `Query returns the stored rows that match the metadata filter, in file and
page order. A query without any filter needs --limit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		svc := retrieval.NewService(store, nil, logger)
		rows, err := svc.Query(cmd.Context(), queryFilter.filter(cmd), queryLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rows)
	},
}

func init() {
	searchFilter.bind(searchCmd)
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "number of hits (default: search.top_k)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0.80, "relevance threshold (default: search.threshold)")
	searchCmd.Flags().BoolVar(&searchGroup, "group", false, "group hits by topic")
	searchCmd.Flags().Float64Var(&searchGroupThreshold, "group-threshold", 0.75, "similarity needed to join a group (default: search.group_threshold)")

	queryFilter.bind(queryCmd)
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum rows to return (0 = no limit)")
}
