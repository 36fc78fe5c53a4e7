package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dgallion1/regdocs/internal/retrieval"
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Maintain the stored rows of one document page",
}

var (
	pageText      string
	pageBookmark  string
	pageChapter   string
	pageHasTables bool
)

// pageArgs parses <file_name> <page_number>.
func pageArgs(args []string) (string, int, error) {
	page, err := strconv.Atoi(args[1])
	if err != nil || page < 1 {
		return "", 0, fmt.Errorf("page number must be a positive integer, got %q", args[1])
	}
	return args[0], page, nil
}

// pageFields returns the fields whose flags were given.
func pageFields(cmd *cobra.Command) retrieval.PageFields {
	var f retrieval.PageFields
	fs := cmd.Flags()
	if fs.Changed("text") {
		f.Text = &pageText
	}
	if fs.Changed("bookmark") {
		f.Bookmark = &pageBookmark
	}
	if fs.Changed("chapter-title") {
		f.ChapterTitle = &pageChapter
	}
	if fs.Changed("has-tables") {
		f.HasTables = &pageHasTables
	}
	return f
}

func pageService(cmd *cobra.Command) (*retrieval.Service, *app, error) {
	a, err := newApp(cmd.Context(), needs{embedder: true, store: true})
	if err != nil {
		return nil, nil, err
	}
	return retrieval.NewService(a.runner.Store, a.runner.Embedder, logger), a, nil
}

var pageUpdateCmd = &cobra.Command{
	Use:   "update <file_name> <page_number>",
	Short: "Set fields on every row of a page; new text is embedded again",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, page, err := pageArgs(args)
		if err != nil {
			return err
		}
		svc, a, err := pageService(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := svc.UpdatePage(cmd.Context(), file, page, pageFields(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s page %d: %d rows updated\n", file, page, n)
		return nil
	},
}

var pageUpsertCmd = &cobra.Command{
	Use:   "upsert <file_name> <page_number>",
	Short: "Update a page, or insert a row for it when it has none",
	Long: `Upsert updates the page like "page update" does. When the page has no
rows, a single row is inserted with the given fields; its text defaults
to "[NEW]".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, page, err := pageArgs(args)
		if err != nil {
			return err
		}
		svc, a, err := pageService(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := svc.UpsertPage(cmd.Context(), file, page, pageFields(cmd))
		if err != nil {
			return err
		}
		if res.Inserted {
			fmt.Fprintf(cmd.OutOrStdout(), "%s page %d: row inserted\n", file, page)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s page %d: %d rows updated\n", file, page, res.Rows)
		return nil
	},
}

var pageDeleteCmd = &cobra.Command{
	Use:   "delete <file_name> <page_number>",
	Short: "Delete every row of a page; fails when the page has none",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, page, err := pageArgs(args)
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := retrieval.NewService(store, nil, logger).DeletePage(cmd.Context(), file, page)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s page %d: %d rows deleted\n", file, page, n)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{pageUpdateCmd, pageUpsertCmd} {
		c.Flags().StringVar(&pageText, "text", "", "new page text")
		c.Flags().StringVar(&pageBookmark, "bookmark", "", "new bookmark")
		c.Flags().StringVar(&pageChapter, "chapter-title", "", "new chapter title")
		c.Flags().BoolVar(&pageHasTables, "has-tables", false, "whether the page has tables")
	}
	pageCmd.AddCommand(pageUpdateCmd, pageUpsertCmd, pageDeleteCmd)
}
