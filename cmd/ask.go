package cmd

import (
	"fmt"
	"strings"

	"docquery/internal/retriever"

	"github.com/spf13/cobra"
)

var (
	flagAskDoc     string
	flagAskSources bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about your documents",
	Long: `Ask a question answered from the document corpus. With --doc the answer
comes from that document alone; otherwise every document is searched and
the best matches across the corpus are used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		question := strings.Join(args, " ")

		var resp *retriever.Response
		if flagAskDoc != "" {
			resp, err = app.retriever.AskScoped(cmd.Context(), question, flagAskDoc)
		} else {
			resp, err = app.retriever.AskGlobal(cmd.Context(), question)
		}
		if err != nil {
			return err
		}

		if !resp.Found {
			fmt.Println(warnStyle.Render("No answer found in the documents."))
			return nil
		}

		fmt.Print(renderMarkdown(resp.Answer))
		if flagAskSources {
			fmt.Print(formatSources(resp.Chunks))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&flagAskDoc, "doc", "", "answer from this document only")
	askCmd.Flags().BoolVar(&flagAskSources, "sources", false, "show the chunks backing the answer")
	rootCmd.AddCommand(askCmd)
}
