package benchie

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BENCHIE"

// Execute runs the root command and exits with status 1 on any failure.
func Execute() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		slog.Error("Benchmark failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchie",
		Short: "Throughput benchmark for the target network",
		Long: `Seeds test accounts on the mock source chain, broadcasts a batch of identical swap or
liquidity-add transactions and measures how long the target network takes to process them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to a config file")
	flags.StringP("logLevel", "l", "info", "Log level (debug|info|warn|error)")
	flags.String("binance", "http://localhost:26660", "Mock binance server")
	flags.String("mayachain", "http://localhost:1317", "Mayachain API url")
	flags.String("mayachain-websocket", "ws://localhost:26657/websocket", "Mayachain websocket url")
	flags.String("tx-type", "swap", "Transactions type to perform (swap or add)")
	flags.Int("num", 100, "Number of transactions to perform")
	flags.String("source-chain", "BNB", "Source chain symbol")
	flags.String("source-asset", "BNB.BNB", "Source chain native asset")
	flags.String("target-asset", "MAYA.CACAO", "Target network native asset")
	flags.Duration("poll-interval", defaultPollInterval, "Interval between completion polls")
	flags.Duration("timeout", defaultTimeout, "Maximum time to wait for all transactions to complete")
	flags.Uint64("settle-blocks", 1, "Blocks the target network must produce after each setup step (0 uses settle-delay)")
	flags.Duration("settle-timeout", defaultSettleTimeout, "Maximum time to wait for settle-blocks")
	flags.Duration("settle-delay", defaultSettleDelay, "Fixed wait after each setup step when settle-blocks is 0")
	flags.Uint("max-retries", 3, "Retries for block height queries")
	flags.Float64("rate-limit", 0, "Maximum target REST requests per second (0 disables limiting)")
	flags.Duration("http-timeout", defaultHTTPTimeout, "HTTP request timeout")
	flags.Bool("no-progress", false, "Disable the progress bar")
	flags.String("output", "none", "Where to write the result (none|stdout|postgres|kafka)")
	flags.String("postgres-dsn", "", "PostgreSQL connection string for the postgres output")
	flags.StringSlice("kafka-brokers", nil, "Kafka brokers for the kafka output")
	flags.String("kafka-topic", "benchie-results", "Kafka topic for the kafka output")
	flags.String("metrics-addr", "", "Serve prometheus metrics on this address (empty disables)")

	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("failed to bind flags: %v", err))
	}
	return cmd
}

func initConfig(v *viper.Viper) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	level, err := parseLogLevel(v.GetString("logLevel"))
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
}
