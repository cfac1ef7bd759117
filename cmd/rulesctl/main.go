// Command rulesctl maintains the rule store: schema setup, seeding from YAML
// and vectorizing rules for similarity search.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/app"
	"github.com/ahmednasr/mapping-assistant/internal/config"
	"github.com/ahmednasr/mapping-assistant/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "rulesctl",
	Short:         "Manage the code review rule store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the rules table or collection and its unique (language, title) index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(env *env) error {
			if err := env.store.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule store ready (%s).\n", env.cfg.RuleStore)
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <rules.yaml>",
	Short: "Upsert rules from a YAML file; every code pattern must compile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadSeed(args[0])
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(env *env) error {
			if err := seedRules(cmd.Context(), env.store, rules); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d rule(s).\n", len(rules))
			return nil
		})
	},
}

var vectorizeCmd = &cobra.Command{
	Use:   "vectorize",
	Short: "Embed every rule that has no stored vector",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(env *env) error {
			embedder, closeEmbedder, err := app.NewEmbedder(cmd.Context(), env.cfg, env.logger)
			if err != nil {
				return err
			}
			defer closeEmbedder()

			n, err := vectorizeRules(cmd.Context(), env.store, embedder, env.logger)
			fmt.Fprintf(cmd.OutOrStdout(), "Vectorized %d rule(s).\n", n)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(setupCmd, seedCmd, vectorizeCmd)
}

// env is what every subcommand runs against.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	store  app.RuleAdmin
}

// withStore loads configuration, opens the rule store and runs fn.
func withStore(ctx context.Context, fn func(*env) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := app.OpenRuleAdmin(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(&env{cfg: cfg, logger: logger, store: store})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
