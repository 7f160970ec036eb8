package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the tree as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.container.Load(cmd.Context())
			payload, err := a.container.Persistence.Export(a.container.Tree.Snapshot())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(append(payload, '\n'))
				return err
			}
			return os.WriteFile(output, payload, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the tree with an exported document",
		Long: `Replace the tree with an exported document.

Older formats are migrated and damaged documents repaired. The previous tree
stays available as a backup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			a.container.Load(ctx)
			snap, err := a.container.Persistence.Import(ctx, raw)
			if err != nil {
				return err
			}
			if err := a.container.Tree.RestoreSnapshot(ctx, snap); err != nil {
				return err
			}
			if err := a.save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d persons\n", a.container.Tree.Family().Len())
			return nil
		},
	}
}

func (a *app) backupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backups, err := a.container.Persistence.ListBackups(cmd.Context())
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no backups")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSAVED")
			for _, b := range backups {
				saved := "unknown"
				if !b.Timestamp.IsZero() {
					saved = b.Timestamp.Local().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\n", b.Key, saved)
			}
			return tw.Flush()
		},
	}
}

func (a *app) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-key>",
		Short: "Replace the tree with a stored backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.container.Load(ctx)
			snap := a.container.Persistence.LoadBackup(ctx, args[0])
			if snap == nil {
				return fmt.Errorf("backup %s not found or unreadable", args[0])
			}
			if err := a.container.Tree.RestoreSnapshot(ctx, snap); err != nil {
				return err
			}
			if err := a.save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d persons from %s\n", a.container.Tree.Family().Len(), args[0])
			return nil
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the tree and every backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("clear removes every stored snapshot; pass --yes to confirm")
			}
			ctx := cmd.Context()
			a.container.Load(ctx)
			return a.container.Tree.Clear(ctx)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
