package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and corpus state",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()

		info, err := app.index.Info(ctx)
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Index"))
		fmt.Printf("  Database:      %s\n", app.settings.DBPath())
		fmt.Printf("  Chunks:        %d\n", info.TotalChunks)
		fmt.Printf("  Chunk size:    %d words (overlap %d)\n", info.ChunkSize, info.ChunkOverlap)
		fmt.Printf("  Batch size:    %d\n", info.BatchSize)
		fmt.Println()

		docs, err := app.retriever.Documents(ctx)
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Documents in %s", app.settings.DocsDir)))
		if len(docs) == 0 {
			fmt.Println(dimStyle.Render("  (none)"))
			return nil
		}
		for _, d := range docs {
			mark := warnStyle.Render("not indexed")
			if d.Indexed {
				mark = successStyle.Render("indexed")
			}
			fmt.Printf("  %-40s %s\n", d.Name, mark)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
