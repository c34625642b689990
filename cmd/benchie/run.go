package benchie

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/manifest-network/benchie/internal/aliases"
	"github.com/manifest-network/benchie/internal/benchmark"
	"github.com/manifest-network/benchie/internal/client"
	"github.com/manifest-network/benchie/internal/config"
	"github.com/manifest-network/benchie/internal/metrics"
	"github.com/manifest-network/benchie/internal/output"
	"github.com/manifest-network/benchie/internal/output/kafka"
	"github.com/manifest-network/benchie/internal/output/postgresql"
	"github.com/manifest-network/benchie/internal/output/stdout"
)

const (
	defaultPollInterval  = time.Second
	defaultTimeout       = 10 * time.Minute
	defaultSettleTimeout = 30 * time.Second
	defaultSettleDelay   = 5 * time.Second
	defaultHTTPTimeout   = 30 * time.Second
)

// loadConfig reads and validates the run configuration. It performs no network I/O.
func loadConfig(v *viper.Viper) (config.BenchmarkConfig, config.OutputConfig, error) {
	workload, err := config.ParseWorkload(v.GetString("tx-type"))
	if err != nil {
		return config.BenchmarkConfig{}, config.OutputConfig{}, err
	}

	cfg := config.BenchmarkConfig{
		SourceURL:     v.GetString("binance"),
		TargetURL:     v.GetString("mayachain"),
		WebsocketURL:  v.GetString("mayachain-websocket"),
		Workload:      workload,
		Count:         v.GetInt("num"),
		SourceChain:   v.GetString("source-chain"),
		SourceAsset:   v.GetString("source-asset"),
		TargetAsset:   v.GetString("target-asset"),
		PollInterval:  v.GetDuration("poll-interval"),
		Timeout:       v.GetDuration("timeout"),
		SettleBlocks:  v.GetUint64("settle-blocks"),
		SettleTimeout: v.GetDuration("settle-timeout"),
		SettleDelay:   v.GetDuration("settle-delay"),
		MaxRetries:    v.GetUint("max-retries"),
		RateLimit:     v.GetFloat64("rate-limit"),
		ShowProgress:  !v.GetBool("no-progress"),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, config.OutputConfig{}, err
	}

	out := config.OutputConfig{
		Kind:         v.GetString("output"),
		PostgresDSN:  v.GetString("postgres-dsn"),
		KafkaBrokers: v.GetStringSlice("kafka-brokers"),
		KafkaTopic:   v.GetString("kafka-topic"),
		MetricsAddr:  v.GetString("metrics-addr"),
	}
	if err := out.Validate(); err != nil {
		return cfg, out, err
	}
	return cfg, out, nil
}

func newResultWriter(ctx context.Context, cfg config.OutputConfig) (output.ResultWriter, error) {
	switch cfg.Kind {
	case "stdout":
		return stdout.NewOutputHandler(nil), nil
	case "postgres":
		return postgresql.NewPostgresOutputHandler(ctx, cfg.PostgresDSN)
	case "kafka":
		return kafka.NewKafkaOutputHandler(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return output.Discard{}, nil
	}
}

// aliasOverrides reads the optional `aliases` config section: chain -> role -> address.
func aliasOverrides(v *viper.Viper) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for chain := range v.GetStringMap("aliases") {
		out[chain] = v.GetStringMapString("aliases." + chain)
	}
	return out
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, outCfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if outCfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, outCfg.MetricsAddr); err != nil {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	resolver, err := aliases.NewResolver(aliasOverrides(v))
	if err != nil {
		return err
	}

	writer, err := newResultWriter(ctx, outCfg)
	if err != nil {
		return fmt.Errorf("failed to create %s output: %w", outCfg.Kind, err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Warn("Failed to close output", "error", err)
		}
	}()

	httpTimeout := v.GetDuration("http-timeout")
	events := &client.EventLog{}
	runner, err := benchmark.NewRunner(cfg, benchmark.Options{
		Source:   client.NewSourceClient(cfg.SourceURL, httpTimeout),
		Target:   client.NewTargetClient(cfg.TargetURL, httpTimeout, cfg.RateLimit),
		Stream:   client.NewEventStream(cfg.WebsocketURL, events),
		Events:   events,
		Resolver: resolver,
		Writer:   writer,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	if _, err := runner.Run(ctx); err != nil {
		return err
	}
	return nil
}
