package main

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guildmem/internal/service"
	"guildmem/internal/tui"
)

var searchContext bool

var searchCmd = &cobra.Command{
	Use:   "search [guild] [query...]",
	Short: "Search a guild's stored memory",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

var consoleCmd = &cobra.Command{
	Use:   "console [guild]",
	Short: "Interactive search console for a guild",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsole,
}

func init() {
	searchCmd.Flags().BoolVar(&searchContext, "context", false, "print the assembled context block instead of ranked hits")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(consoleCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	guildID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid guild id %q", args[0])
	}
	query := strings.Join(args[1:], " ")

	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}

	if searchContext {
		res, err := p.Retrieve(cmd.Context(), guildID, query)
		if err != nil {
			return err
		}
		if res == nil {
			color.Yellow("Nothing relevant found")
			return nil
		}
		cmd.Println(res.ContextBlock)
		cmd.Println()
		for _, c := range res.Citations {
			cmd.Println("  " + c)
		}
		return nil
	}

	hits, err := p.Search(cmd.Context(), guildID, query)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		color.Yellow("Nothing relevant found")
		return nil
	}
	for i, hit := range hits {
		cmd.Printf("  [%d] (%.3f) %s\n", i+1, hit.Score, hit.Payload.Text)
		cmd.Printf("      %s\n\n", service.FormatCitation(hit.Payload))
	}
	return nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	guildID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid guild id %q", args[0])
	}
	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(tui.New(p, guildID)).Run()
	return err
}
