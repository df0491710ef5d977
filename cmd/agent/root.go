package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/aura-proctor/backend/config"
	"github.com/aura-proctor/backend/internal/agent"
	"github.com/aura-proctor/backend/internal/focus"
)

var rootCmd = &cobra.Command{
	Use:   "proctor-agent",
	Short: "Focus monitoring host for the proctoring browser extension",
	Long: "proctor-agent scores a participant's attention from browser signals and reports " +
		"focus events to the proctoring server. Chrome starts it as a native-messaging host.",
	SilenceUsage: true,
	// Chrome passes the caller origin (and on Windows a window handle) as arguments.
	Args: cobra.ArbitraryArgs,
	RunE: runAgent,
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print the effective scoring policy as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolvePolicy(cmd)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(p)
	},
}

func init() {
	rootCmd.PersistentFlags().String("policy", "", "YAML policy file (overrides AGENT_POLICY_FILE)")

	f := rootCmd.Flags()
	f.String("format", "native", "stdio framing: native (length-prefixed) or jsonl")
	f.String("server", "", "proctoring server base URL (overrides AGENT_SERVER_URL)")
	f.String("participant", "", "participant id used when the extension does not send one")
	f.String("session", "", "session id used when the extension does not send one")
	f.Duration("heartbeat", 0, "periodic heartbeat interval, 0 to rely on extension requests")
	f.Bool("terminal", false, "also print warnings and status to stderr")
	f.Bool("debug", false, "debug logging")

	rootCmd.AddCommand(policyCmd)
}

func runAgent(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)
	defer logger.Sync()

	policy, err := resolvePolicy(cmd)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	var codec agent.Codec
	switch format {
	case "native":
		codec = agent.NewNativeCodec(os.Stdin, os.Stdout)
	case "jsonl":
		codec = agent.NewLineCodec(os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	server, err := serverURL(flagOr(cmd, "server", cfg.Agent.ServerURL))
	if err != nil {
		return err
	}
	opts := agent.Options{
		ParticipantID: flagOr(cmd, "participant", cfg.Agent.ParticipantID),
		SessionID:     flagOr(cmd, "session", cfg.Agent.SessionID),
		Policy:        policy,
		Sender:        agent.NewHTTPSender(server, nil),
		SendTimeout:   cfg.Agent.SendTimeout,
		Heartbeat:     cfg.Agent.Heartbeat,
		Logger:        logger,
	}
	if cmd.Flags().Changed("heartbeat") {
		opts.Heartbeat, _ = cmd.Flags().GetDuration("heartbeat")
	}
	if terminal, _ := cmd.Flags().GetBool("terminal"); terminal {
		opts.Presenter = agent.NewTerminalPresenter(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("agent started",
		zap.String("server", server),
		zap.String("format", format),
		zap.String("mode", string(policy.Mode)),
	)
	return agent.NewHost(codec, opts).Serve(ctx)
}

func resolvePolicy(cmd *cobra.Command) (focus.Policy, error) {
	path, _ := cmd.Flags().GetString("policy")
	if path == "" {
		path = os.Getenv("AGENT_POLICY_FILE")
	}
	if path == "" {
		return focus.DefaultPolicy(), nil
	}
	return focus.LoadPolicy(path)
}

// serverURL requires an absolute http(s) base URL so events are never posted to a relative path.
func serverURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("server URL is required: set --server or AGENT_SERVER_URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("server URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("server URL %q must be an absolute http or https URL", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

func flagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

// newLogger writes JSON logs to stderr; stdout carries the native-messaging protocol.
func newLogger(debug bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, _ := config.Build()
	return logger
}
