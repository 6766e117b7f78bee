package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guildmem/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View and change per-guild retrieval settings",
	RunE:  runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show global defaults and per-guild overrides",
	RunE:  runSettingsShow,
}

var settingsTopKCmd = &cobra.Command{
	Use:   "top-k [guild] [n]",
	Short: "Set how many results a guild's retrieval returns",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsTopK,
}

var settingsMinScoreCmd = &cobra.Command{
	Use:   "min-score [guild] [score]",
	Short: "Set a guild's similarity threshold, in (0, 1]",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsMinScore,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsTopKCmd)
	settingsCmd.AddCommand(settingsMinScoreCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	cmd.Printf("Global: top_k=%d min_score=%.2f max_context_chars=%d\n",
		cfg.Retrieval.TopK, cfg.Retrieval.MinScore, cfg.Retrieval.MaxContextChars)
	if len(cfg.Guilds) == 0 {
		cmd.Println("No per-guild overrides.")
		return nil
	}
	guilds := make([]int64, 0, len(cfg.Guilds))
	for id := range cfg.Guilds {
		guilds = append(guilds, id)
	}
	sort.Slice(guilds, func(i, j int) bool { return guilds[i] < guilds[j] })
	for _, id := range guilds {
		g := cfg.Guilds[id]
		cmd.Printf("Guild %d:", id)
		if g.TopK > 0 {
			cmd.Printf(" top_k=%d", g.TopK)
		}
		if g.MinScore > 0 {
			cmd.Printf(" min_score=%.2f", g.MinScore)
		}
		cmd.Println()
	}
	return nil
}

func runSettingsTopK(cmd *cobra.Command, args []string) error {
	guildID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid guild id %q", args[0])
	}
	topK, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid top-k %q", args[1])
	}
	if err := cfg.SetGuildTopK(guildID, topK); err != nil {
		return err
	}
	if err := config.Save(cfgFile, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	color.Green("Guild %d top_k set to %d", guildID, topK)
	return nil
}

func runSettingsMinScore(cmd *cobra.Command, args []string) error {
	guildID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid guild id %q", args[0])
	}
	score, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return fmt.Errorf("invalid score %q", args[1])
	}
	if err := cfg.SetGuildMinScore(guildID, float32(score)); err != nil {
		return err
	}
	if err := config.Save(cfgFile, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	color.Green("Guild %d min_score set to %.2f", guildID, score)
	return nil
}
