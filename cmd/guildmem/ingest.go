package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guildmem/internal/domain"
)

var (
	ingestGuild    int64
	ingestChannel  int64
	ingestAuthorID int64
	ingestAuthor   string
	ingestSource   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index messages, web pages or documents",
}

var ingestMessagesCmd = &cobra.Command{
	Use:   "messages [file|-]",
	Short: "Index a JSON array of chat messages",
	Long: `Reads a JSON array of chat messages from a file or stdin and indexes
their content. Bot messages and emote-only content are skipped; identical
content is stored once.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestMessages,
}

var ingestURLCmd = &cobra.Command{
	Use:   "url [url]",
	Short: "Fetch a web page and index its main content",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestURL,
}

var ingestFileCmd = &cobra.Command{
	Use:   "file [path]",
	Short: "Index a text, markdown, PDF or DOCX file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestFile,
}

func init() {
	for _, c := range []*cobra.Command{ingestURLCmd, ingestFileCmd} {
		c.Flags().Int64Var(&ingestGuild, "guild", 0, "guild the content belongs to")
		c.Flags().Int64Var(&ingestChannel, "channel", 0, "channel to attribute")
		c.Flags().Int64Var(&ingestAuthorID, "author-id", 0, "user to attribute")
		c.Flags().StringVar(&ingestAuthor, "author", "", "display name to attribute")
		_ = c.MarkFlagRequired("guild")
	}
	ingestMessagesCmd.Flags().StringVar(&ingestSource, "source", "chat", "source tag stored with each point")

	ingestCmd.AddCommand(ingestMessagesCmd)
	ingestCmd.AddCommand(ingestURLCmd)
	ingestCmd.AddCommand(ingestFileCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestMessages(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read messages: %w", err)
	}
	var msgs []domain.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("parse messages: %w", err)
	}

	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}
	count, err := p.IngestMessages(cmd.Context(), msgs, ingestSource)
	if err != nil {
		return err
	}
	color.Green("Indexed %d unique points from %d messages", count, len(msgs))
	return nil
}

func runIngestURL(cmd *cobra.Command, args []string) error {
	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}
	count, err := p.IngestURL(cmd.Context(), ingestScope(), args[0])
	if err != nil {
		return err
	}
	if count == 0 {
		color.Yellow("No text extracted from %s", args[0])
		return nil
	}
	color.Green("Indexed %d unique points from %s", count, args[0])
	return nil
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	p, err := getPipeline(cmd)
	if err != nil {
		return err
	}
	count, err := p.IngestFile(cmd.Context(), ingestScope(), data, filepath.Base(args[0]))
	if err != nil {
		return err
	}
	if count == 0 {
		color.Yellow("No text extracted from %s", args[0])
		return nil
	}
	color.Green("Indexed %d unique points from %s", count, args[0])
	return nil
}

func ingestScope() domain.Scope {
	return domain.Scope{
		GuildID:   ingestGuild,
		ChannelID: ingestChannel,
		AuthorID:  ingestAuthorID,
		Author:    ingestAuthor,
	}
}
