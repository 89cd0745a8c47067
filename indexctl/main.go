// Command indexctl manages the discovery search index schema. It
// covers the operator paths that must not run implicitly: creating the
// index ahead of the first indexer deploy and rebuilding it after a
// mapping change.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawtmedia/discovery/internal/config"
	"github.com/sawtmedia/discovery/internal/logger"
	"github.com/sawtmedia/discovery/internal/search"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "indexctl",
		Short:         "Manage the discovery search index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEnsureCmd(), newRecreateCmd(), newPingCmd())
	return root
}

func newClient() (*search.Client, error) {
	cfg := config.LoadCommon()
	return search.New(cfg.SearchAddr, cfg.SearchIndex, logger.New("indexctl"))
}

func newEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create the index with its mapping if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return client.EnsureIndex(ctx)
		},
	}
}

func newRecreateCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "recreate",
		Short: "Delete and recreate the index (drops all documents)",
		Long: "Drops the index and creates it again from the bundled mapping.\n" +
			"Documents are restored by resetting the indexer consumer group,\n" +
			"which replays the change topic from the earliest offset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("recreate drops all indexed documents; re-run with --force")
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			return client.RecreateIndex(ctx)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm dropping the existing index")
	return cmd
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check Elasticsearch connectivity and cluster health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			status, err := client.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cluster status: %s\n", status)
			return nil
		},
	}
}
