package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

// withEngine runs fn against an engine connected to the configured Redis.
// Operator commands do not need the identity provider or the user store.
func withEngine(ctx context.Context, fn func(*goSession.Engine) error) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	rdb, err := connectRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	engine, err := goSession.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(rdb).
		WithLogger(log).
		WithAuditSink(goSession.NewSlogSink(log.With("component", "audit"))).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()
	return fn(engine)
}

func newBlockIPCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "block-ip <ip>",
		Short: "Add an address to the block list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(e *goSession.Engine) error {
				if err := e.BlockIP(cmd.Context(), args[0], ttl); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "blocked %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "block duration (0 uses the configured default)")
	return cmd
}

func newUnblockIPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock-ip <ip>",
		Short: "Remove an address from the block list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(e *goSession.Engine) error {
				if err := e.UnblockIP(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unblocked %s\n", args[0])
				return nil
			})
		},
	}
}
