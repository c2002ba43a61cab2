package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [document...]",
	Short: "Index PDF documents for retrieval",
	Long: `Index the named PDF documents, or every PDF in the docs directory when
none are named. Documents already indexed are skipped; text extraction
falls back to OCR for scanned pages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		docs := args
		if len(docs) == 0 {
			docs, err = app.retriever.ListDocuments()
			if err != nil {
				return err
			}
		}
		if len(docs) == 0 {
			fmt.Printf("No PDF documents found in %s\n", app.settings.DocsDir)
			return nil
		}

		start := time.Now()
		var failed int
		for _, doc := range docs {
			fmt.Printf("Indexing %s...\n", doc)
			if err := app.retriever.EnsureIndexed(cmd.Context(), doc); err != nil {
				fmt.Printf("  failed: %v\n", err)
				failed++
			}
		}

		fmt.Printf("\nDone in %s: %d document(s), %d failed\n",
			time.Since(start).Round(time.Millisecond), len(docs), failed)
		if failed > 0 {
			return fmt.Errorf("%d document(s) failed to index", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
