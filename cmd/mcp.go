package cmd

import (
	"context"
	"fmt"
	"strings"

	"docquery/internal/index"
	"docquery/internal/retriever"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing document question-answering tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		s := mcpserver.NewMCPServer("docquery", "1.0.0", mcpserver.WithToolCapabilities(false))

		s.AddTool(searchDocumentsTool(), makeSearchHandler(app))
		s.AddTool(askDocumentsTool(), makeAskHandler(app))
		s.AddTool(listDocumentsTool(), makeListHandler(app))

		return mcpserver.ServeStdio(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchDocumentsTool() mcp.Tool {
	return mcp.NewTool("search_documents",
		mcp.WithDescription("Semantically search the indexed PDF documents. Returns the most similar chunks with their source document and similarity score."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query to search the documents"),
		),
		mcp.WithString("document",
			mcp.Description("Optional document name to restrict the search to"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 5)"),
		),
	)
}

func askDocumentsTool() mcp.Tool {
	return mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a question from the PDF documents using the local language model. Searches the whole corpus, or one document when named."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithString("document",
			mcp.Description("Optional document name to answer from exclusively"),
		),
	)
}

func listDocumentsTool() mcp.Tool {
	return mcp.NewTool("list_documents",
		mcp.WithDescription("List the PDF documents in the corpus directory and whether each is indexed."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

func makeSearchHandler(app *app) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", 5)
		if k <= 0 {
			k = 5
		}
		doc := req.GetString("document", "")

		var results []index.SearchResult
		var err error
		if doc != "" {
			if err := app.retriever.EnsureIndexed(ctx, doc); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("index %s failed: %v", doc, err)), nil
			}
			results, err = app.index.SearchInDocument(ctx, query, doc, k, -1)
		} else {
			results, err = app.index.Search(ctx, query, k, -1)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeAskHandler(app *app) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question := req.GetString("question", "")
		if question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}
		doc := req.GetString("document", "")

		var resp *retriever.Response
		var err error
		if doc != "" {
			resp, err = app.retriever.AskScoped(ctx, question, doc)
		} else {
			resp, err = app.retriever.AskGlobal(ctx, question)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		if !resp.Found {
			return mcp.NewToolResultText("No answer found in the documents."), nil
		}

		var sb strings.Builder
		sb.WriteString(resp.Answer)
		if len(resp.Chunks) > 0 {
			sb.WriteString("\n\n**Sources:**\n")
			for _, c := range resp.Chunks {
				fmt.Fprintf(&sb, "- %s (chunk %d, score %.3f)\n", c.Source, c.ChunkIndex, c.Score)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeListHandler(app *app) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docs, err := app.retriever.Documents(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list documents failed: %v", err)), nil
		}
		if len(docs) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No PDF documents in %s.", app.settings.DocsDir)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Documents (%d)\n\n", len(docs))
		for _, d := range docs {
			state := "not indexed"
			if d.Indexed {
				state = "indexed"
			}
			fmt.Fprintf(&sb, "- **%s** (%s)\n", d.Name, state)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, results []index.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "### Result %d: %s\n\n", i+1, r.Source)
		fmt.Fprintf(&sb, "**Chunk:** %d  \n**Score:** %.3f\n\n", r.ChunkIndex, r.Score)
		fmt.Fprintf(&sb, "%s\n\n", r.Text)
	}
	return sb.String()
}
