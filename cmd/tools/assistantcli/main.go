// Command assistantcli exercises the assistant services from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/educhain/assistant/backend/internal/config"
	"github.com/educhain/assistant/backend/pkg/log"
)

type options struct {
	configDir string
	verbose   bool
	cfg       *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "assistantcli",
		Short: "Talk to the EduChain assistant and its speech and summary services",
		Long: `assistantcli drives the same services as the HTTP API.
Configuration comes from .env, an optional config.yaml and the environment
(GEMINI_API_KEY, SPEECH_APP_ID, SPEECH_ACCESS_TOKEN, ...).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load(opts.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			level := cfg.Log.Level
			if opts.verbose {
				level = "debug"
			}
			log.Init(log.Config{
				Level:       level,
				Pretty:      true,
				ServiceName: "assistantcli",
				Output:      cmd.ErrOrStderr(),
			})

			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "directory holding config.yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newChatCmd(opts),
		newSummaryCmd(opts),
		newASRCmd(opts),
		newTTSCmd(opts),
	)
	return root
}
