package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/botvisor/pkg/client"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createLifecycleCommand("start", "Start the bot"),
		createLifecycleCommand("stop", "Stop the bot"),
		createLifecycleCommand("restart", "Restart the bot"),
		createStatusCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "botvisor",
		Short: "Supervise a single bot process over HTTP",
		Long: `Botvisor runs one bot process and exposes start, stop, restart and
status over a small HTTP API.

Examples:
  botvisor serve botvisor.toml      # run the controller
  botvisor start                    # ask a running controller to start the bot
  botvisor status --api-url=http://bots.internal:3000`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the controller",
		Long: `Run the controller HTTP server. Configuration comes from the optional
TOML file and BOTVISOR_* environment variables; PORT selects the listen port.

Examples:
  botvisor serve
  botvisor serve botvisor.toml
  PORT=8080 BOTVISOR_BOT_COMMAND="python3 bot.py" botvisor serve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, path, nil)
		},
	}
}

func addAPIFlags(cmd *cobra.Command, f *APIFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", envOr("BOTVISOR_API_URL", client.DefaultBaseURL), "controller base URL")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 30*time.Second, "request timeout")
}

func createLifecycleCommand(op, short string) *cobra.Command {
	f := &APIFlags{}
	cmd := &cobra.Command{
		Use:   op,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(*f)
			if err != nil {
				return err
			}
			return runLifecycle(cmd.Context(), c, op, cmd.OutOrStdout())
		},
	}
	addAPIFlags(cmd, f)
	return cmd
}

func createStatusCommand() *cobra.Command {
	f := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the bot is online and its uptime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(f.APIFlags)
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), c, f.Detailed, cmd.OutOrStdout())
		},
	}
	addAPIFlags(cmd, &f.APIFlags)
	cmd.Flags().BoolVar(&f.Detailed, "detailed", false, "include pid, run id and start time")
	return cmd
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
