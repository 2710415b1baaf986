package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"streamvault/internal/admin"

	"github.com/spf13/cobra"
)

var (
	adminAddr    string
	adminTimeout time.Duration
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative calls against a running vault",
}

var adminDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every stored key and value as JSON",
	RunE: withAdminClient(func(ctx context.Context, cmd *cobra.Command, client *admin.Client) error {
		values, err := client.Dump(ctx)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}),
}

var adminSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the primary snapshot now",
	RunE: withAdminClient(func(ctx context.Context, cmd *cobra.Command, client *admin.Client) error {
		if err := client.Save(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "snapshot saved")
		return nil
	}),
}

var adminClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry without notifying subscribers",
	RunE: withAdminClient(func(ctx context.Context, cmd *cobra.Command, client *admin.Client) error {
		removed, err := client.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
		return nil
	}),
}

func init() {
	adminCmd.PersistentFlags().StringVar(&adminAddr, "addr", "127.0.0.1:9001", "admin gRPC address")
	adminCmd.PersistentFlags().DurationVar(&adminTimeout, "timeout", 5*time.Second, "call timeout")
	adminCmd.AddCommand(adminDumpCmd, adminSaveCmd, adminClearCmd)
}

func withAdminClient(fn func(ctx context.Context, cmd *cobra.Command, client *admin.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		client, err := admin.Dial(adminAddr)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
		defer cancel()
		return fn(ctx, cmd, client)
	}
}
