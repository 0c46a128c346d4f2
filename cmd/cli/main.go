// Package main provides course-cli, a terminal client for the course service.
//
//	course-cli create "Create a New Technical Course Outline: Kubernetes Networking"
//	course-cli update <id> "Add a lab on network policies"
//	course-cli show <id>
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/client"
	"github.com/fleveque/course-service/internal/config"
	"github.com/fleveque/course-service/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs once flags are parsed.
type app struct {
	configPath string
	serverURL  string
	apiKey     string
	verbose    bool
	noColor    bool

	client *client.Client
	logger *zap.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "course-cli",
		Short:         "Generate and manage technical course documents",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", os.Getenv("COURSE_CONFIG_PATH"), "Config file (client.server_url, client.api_key)")
	flags.StringVar(&a.serverURL, "server", "", "Server URL (overrides config)")
	flags.StringVar(&a.apiKey, "api-key", "", "API key (overrides config)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging on stderr")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		createCmd(a),
		updateCmd(a),
		actionCmd(a),
		suggestCmd(a),
		showCmd(a),
		listCmd(a),
		versionsCmd(a),
		outlineCmd(a),
		exportCmd(a),
		deleteCmd(a),
		searchCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.serverURL != "" {
		cfg.Client.ServerURL = a.serverURL
	}
	if a.apiKey != "" {
		cfg.Client.APIKey = a.apiKey
	}
	if a.noColor {
		color.NoColor = true
	}

	a.logger = logging.NewCLI(a.verbose)
	a.client = client.New(cfg.Client, a.logger)
	return nil
}

// signalContext is cancelled on Ctrl+C, which also cancels a running
// generation on the server.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
