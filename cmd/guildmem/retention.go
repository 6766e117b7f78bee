package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guildmem/internal/vectorstore"
)

var (
	filterGuild   int64
	filterAuthor  int64
	filterChannel int64
	filterBefore  string
	filterAfter   string
	clearAll      bool
	deleteAuthor  int64
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored records as JSON",
	Long: `Dumps the stored records matching the filters as a JSON array.
Vectors are never included. With no filters the whole collection is dumped.`,
	RunE: runExport,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete stored records matching the filters",
	RunE:  runClear,
}

var retentionCmd = &cobra.Command{
	Use:   "retention [days]",
	Short: "Delete records older than the given number of days",
	Long: `Deletes records whose origin timestamp is older than the given number
of days, optionally limited to one guild. Zero or negative days disables the
cleanup and deletes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetention,
}

var forgetUserCmd = &cobra.Command{
	Use:   "forget-user [author-id]",
	Short: "Delete everything a user contributed, across all guilds",
	Args:  cobra.ExactArgs(1),
	RunE:  runForgetUser,
}

var deleteMessagesCmd = &cobra.Command{
	Use:   "delete-messages [message-id...]",
	Short: "Delete the points indexed from specific messages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeleteMessages,
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, clearCmd} {
		c.Flags().Int64Var(&filterGuild, "guild", 0, "limit to one guild")
		c.Flags().Int64Var(&filterAuthor, "author-id", 0, "limit to one user")
		c.Flags().Int64Var(&filterChannel, "channel", 0, "limit to one channel")
		c.Flags().StringVar(&filterBefore, "before", "", "only records created at or before this date (2006-01-02 or RFC3339)")
		c.Flags().StringVar(&filterAfter, "after", "", "only records created at or after this date (2006-01-02 or RFC3339)")
	}
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "required to clear without any filter")
	retentionCmd.Flags().Int64Var(&filterGuild, "guild", 0, "limit to one guild")
	deleteMessagesCmd.Flags().Int64Var(&deleteAuthor, "author-id", 0, "only delete if this user is the author")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(retentionCmd)
	rootCmd.AddCommand(forgetUserCmd)
	rootCmd.AddCommand(deleteMessagesCmd)
}

func recordFilter() (vectorstore.Filter, error) {
	var f vectorstore.Filter
	if filterGuild != 0 {
		f.GuildID = &filterGuild
	}
	if filterAuthor != 0 {
		f.AuthorID = &filterAuthor
	}
	if filterChannel != 0 {
		f.ChannelID = &filterChannel
	}
	if filterBefore != "" {
		ts, err := parseDate(filterBefore)
		if err != nil {
			return f, fmt.Errorf("invalid --before date %q", filterBefore)
		}
		f.Before = &ts
	}
	if filterAfter != "" {
		ts, err := parseDate(filterAfter)
		if err != nil {
			return f, fmt.Errorf("invalid --after date %q", filterAfter)
		}
		f.After = &ts
	}
	return f, nil
}

func parseDate(s string) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	f, err := recordFilter()
	if err != nil {
		return err
	}
	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}
	records, err := p.Export(cmd.Context(), f)
	if err != nil {
		return err
	}
	if records == nil {
		records = []vectorstore.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	f, err := recordFilter()
	if err != nil {
		return err
	}
	if f.Empty() && !clearAll {
		return errors.New("refusing to clear the whole collection without --all")
	}
	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}
	if err := p.DeleteFiltered(cmd.Context(), f); err != nil {
		return err
	}
	color.Green("Deleted matching records")
	return nil
}

func runRetention(cmd *cobra.Command, args []string) error {
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid day count %q", args[0])
	}
	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}
	var guild *int64
	if filterGuild != 0 {
		guild = &filterGuild
	}
	if days <= 0 {
		color.Yellow("Retention disabled (days <= 0), nothing deleted")
		return nil
	}
	if err := p.DeleteOlderThan(cmd.Context(), days, guild); err != nil {
		return err
	}
	color.Green("Deleted records older than %d days", days)
	return nil
}

func runForgetUser(cmd *cobra.Command, args []string) error {
	authorID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid author id %q", args[0])
	}
	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}
	if err := p.DeleteByUser(cmd.Context(), authorID); err != nil {
		return err
	}
	color.Green("Deleted all records of user %d", authorID)
	return nil
}

func runDeleteMessages(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid message id %q", arg)
		}
		ids = append(ids, id)
	}
	var author *int64
	if deleteAuthor != 0 {
		author = &deleteAuthor
	}
	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}
	if err := p.DeleteByMessageIDs(cmd.Context(), ids, author); err != nil {
		return err
	}
	color.Green("Deleted points for %d message(s)", len(ids))
	return nil
}
