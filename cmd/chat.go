package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"docquery/internal/retriever"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()

		// Fail fast when Ollama is down instead of on the first question.
		if err := app.chat.Ping(ctx); err != nil {
			return fmt.Errorf("ollama not reachable at %s: %w", app.settings.Ollama.URL, err)
		}

		// Empty scope means corpus-wide answers.
		var scopeDoc string

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println(titleStyle.Render("docquery chat") + dimStyle.Render("  (/help for commands, /exit to quit)"))
		fmt.Println()

		for {
			prompt := "> "
			if scopeDoc != "" {
				prompt = fmt.Sprintf("[%s] > ", scopeDoc)
			}
			fmt.Print(prompt)
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			if strings.HasPrefix(line, "/") {
				done, err := handleChatCommand(app, line, &scopeDoc)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%v\n", err)
				}
				if done {
					return nil
				}
				continue
			}

			fmt.Println(dimStyle.Render("Searching..."))

			var resp *retriever.Response
			var askErr error
			if scopeDoc != "" {
				resp, askErr = app.retriever.AskScoped(ctx, line, scopeDoc)
			} else {
				resp, askErr = app.retriever.AskGlobal(ctx, line)
			}
			if askErr != nil {
				fmt.Fprintf(os.Stderr, "ask error: %v\n", askErr)
				continue
			}

			fmt.Println()
			if !resp.Found {
				fmt.Println(warnStyle.Render("No answer found in the documents."))
			} else {
				fmt.Print(renderMarkdown(resp.Answer))
				fmt.Print(formatSources(resp.Chunks))
			}
			fmt.Println()
		}

		return scanner.Err()
	},
}

// handleChatCommand executes a slash command. It returns true when the chat
// session should end.
func handleChatCommand(app *app, line string, scopeDoc *string) (bool, error) {
	cmdName, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmdName {
	case "/exit", "/quit":
		fmt.Println("Goodbye.")
		return true, nil

	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /docs         - list documents in the corpus")
		fmt.Println("  /doc <name>   - answer from one document only")
		fmt.Println("  /global       - answer from the whole corpus (default)")
		fmt.Println("  /exit         - quit chat")
		fmt.Println("  /help         - show this help")
		return false, nil

	case "/docs":
		names, err := app.retriever.ListDocuments()
		if err != nil {
			return false, err
		}
		if len(names) == 0 {
			fmt.Printf("No PDF documents in %s\n", app.settings.DocsDir)
			return false, nil
		}
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
		return false, nil

	case "/doc":
		if arg == "" {
			return false, fmt.Errorf("usage: /doc <name>")
		}
		names, err := app.retriever.ListDocuments()
		if err != nil {
			return false, err
		}
		for _, name := range names {
			if name == arg {
				*scopeDoc = name
				fmt.Printf("Answering from %s only.\n", name)
				return false, nil
			}
		}
		return false, fmt.Errorf("document %q not found (/docs lists the corpus)", arg)

	case "/global":
		*scopeDoc = ""
		fmt.Println("Answering from the whole corpus.")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q (/help lists commands)", cmdName)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
