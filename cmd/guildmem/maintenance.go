package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := getPipeline(cmd)
		if err != nil {
			return err
		}
		stats, err := p.Stats(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("Collection: %s\n", p.Collection())
		cmd.Printf("Points:     %d\n", stats.Points)
		cmd.Printf("Segments:   %d\n", stats.Segments)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check vector store liveness",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := getPipeline(cmd)
		if err != nil {
			return err
		}
		version, err := p.Health(cmd.Context())
		if err != nil {
			return err
		}
		color.Green("OK: %s", version)
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage store-side collection snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a snapshot of the collection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := getPipeline(cmd)
		if err != nil {
			return err
		}
		info, err := p.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		color.Green("Created snapshot %s (%d bytes)", info.Name, info.Size)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots of the collection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := getPipeline(cmd)
		if err != nil {
			return err
		}
		infos, err := p.ListSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			cmd.Println("No snapshots.")
			return nil
		}
		for _, info := range infos {
			cmd.Printf("  %s  %s  %d bytes\n", info.Name, info.CreatedAt, info.Size)
		}
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(snapshotCmd)
}
