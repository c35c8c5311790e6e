// Package cli holds the cobra commands that drive the conversation core.
package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"unichatclient/internal/config"
	"unichatclient/internal/conversation"
	"unichatclient/internal/desktop"
	"unichatclient/internal/events"
	"unichatclient/internal/service/ai"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "unichatclient",
	Short:         "Chat with a remote conversational model",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json (defaults to $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd, replCmd, watchCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and configures logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	level := logLevel
	if level == "" {
		level = cfg.BasicConfig.LogLevel
	}
	setupLogging(level, os.Stderr)
	return cfg, nil
}

// setupLogging points the global logger at w, human-readable when w is a
// terminal.
func setupLogging(level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// buildConversation wires the configured provider, the desktop collaborators
// and the given event publishers into a Conversation.
func buildConversation(ctx context.Context, cfg *config.Config, publishers ...events.Publisher) (*conversation.Conversation, error) {
	factory, err := ai.NewSessionFactory(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init model provider")
	}
	log.Info().Str("provider", cfg.BasicConfig.Provider).Msg("cli: model provider ready")

	store := conversation.NewStore(conversation.WithPublisher(events.Multi(publishers)))
	return conversation.New(store, conversation.NewSessionManager(factory), conversation.Config{
		SubmitTimeout: cfg.SubmitTimeout(),
		Clipboard:     desktop.Clipboard{},
		Notifier:      desktop.Notifier{Disabled: !cfg.BasicConfig.NotifyOnCopy},
	}), nil
}
