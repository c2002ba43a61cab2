package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var flagClearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase the entire index",
	Long:  "Irreversibly remove every indexed chunk and embedding. The PDF files themselves are untouched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if !flagClearForce {
			fmt.Printf("This erases the whole index at %s. Continue? [y/N] ", app.settings.DBPath())
			scanner := bufio.NewScanner(os.Stdin)
			if !scanner.Scan() {
				return nil
			}
			answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := app.index.ClearAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Index cleared."))
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&flagClearForce, "force", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}
