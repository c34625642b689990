package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manifest-network/benchie/internal/aliases"
	"github.com/manifest-network/benchie/internal/config"
	"github.com/manifest-network/benchie/internal/metrics"
	"github.com/manifest-network/benchie/internal/models"
	"github.com/manifest-network/benchie/internal/output"
	"github.com/manifest-network/benchie/internal/utils"
)

// SourceChain is the mock chain benchmark transactions are submitted to.
type SourceChain interface {
	Transferer
	SetVaultAddress(addr string)
}

// TargetNetwork is the network whose processing of the transactions is measured.
type TargetNetwork interface {
	utils.HeightSource
	VaultAddress(ctx context.Context, chain string) (string, error)
	VaultPubkey(ctx context.Context) (string, error)
}

// EventStream records target network events until its context is cancelled.
type EventStream interface {
	Run(ctx context.Context) error
}

// Runner drives one benchmark run: seed, generate, broadcast, then measure.
type Runner struct {
	cfg      config.BenchmarkConfig
	assets   Assets
	source   SourceChain
	target   TargetNetwork
	stream   EventStream
	events   EventSource
	resolver *aliases.Resolver
	writer   output.ResultWriter
	metrics  *metrics.Metrics
}

// Options are the collaborators of a Runner. Writer and Metrics are optional.
type Options struct {
	Source   SourceChain
	Target   TargetNetwork
	Stream   EventStream
	Events   EventSource
	Resolver *aliases.Resolver
	Writer   output.ResultWriter
	Metrics  *metrics.Metrics
}

// NewRunner validates cfg and returns a runner. No network call is made.
func NewRunner(cfg config.BenchmarkConfig, opts Options) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Source == nil || opts.Target == nil || opts.Stream == nil || opts.Events == nil || opts.Resolver == nil {
		return nil, errors.New("runner requires a source chain, target network, event stream and alias resolver")
	}
	writer := opts.Writer
	if writer == nil {
		writer = output.Discard{}
	}
	return &Runner{
		cfg: cfg,
		assets: Assets{
			Chain:  cfg.SourceChain,
			Source: cfg.SourceAsset,
			Target: cfg.TargetAsset,
		},
		source:   opts.Source,
		target:   opts.Target,
		stream:   opts.Stream,
		events:   opts.Events,
		resolver: opts.Resolver,
		writer:   writer,
		metrics:  opts.Metrics,
	}, nil
}

// Run executes the benchmark. The event stream runs alongside and is stopped once the run finishes.
func (r *Runner) Run(ctx context.Context) (*models.Result, error) {
	eg, ctx := errgroup.WithContext(ctx)
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()

	eg.Go(func() error {
		return r.stream.Run(streamCtx)
	})

	var result *models.Result
	eg.Go(func() error {
		defer stopStream()
		res, err := r.run(ctx)
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) run(ctx context.Context) (*models.Result, error) {
	slog.Info(">>> Starting benchmark", "type", r.cfg.Workload, "num", r.cfg.Count)

	vault, err := r.vaultInfo(ctx)
	if err != nil {
		return nil, err
	}
	r.source.SetVaultAddress(vault.Address)
	r.resolver.SetVault(r.assets.Chain, vault.Address)
	slog.Info("Resolved vault", "address", vault.Address, "pubkey", vault.PubKey)

	// Give the target network time to start producing blocks.
	if err := r.settle(ctx, "startup"); err != nil {
		return nil, err
	}

	slog.Info(">>> Setting up...")
	broadcaster := NewBroadcaster(r.source, r.metrics)
	seeded, err := NewSeeder(broadcaster, r.resolver, r.assets).Seed(ctx, r.cfg.Workload, r.cfg.Count)
	if err != nil {
		return nil, err
	}
	if err := r.settle(ctx, "seed"); err != nil {
		return nil, err
	}
	slog.Info("<<< Done.", "seedTransfers", len(seeded))

	slog.Info(">>> Compiling transactions...")
	from, err := r.resolver.Resolve(r.assets.Chain, aliases.User1)
	if err != nil {
		return nil, err
	}
	to, err := r.resolver.Resolve(r.assets.Chain, aliases.Vault)
	if err != nil {
		return nil, err
	}
	txs := Generate(r.cfg.Workload, r.cfg.Count, r.assets, from, to)
	slog.Info("<<< Done.", "transactions", len(txs))

	slog.Info(">>> Broadcasting transactions...")
	if err := broadcaster.Broadcast(ctx, txs...); err != nil {
		return nil, fmt.Errorf("failed to broadcast transactions: %w", err)
	}
	slog.Info("<<< Done.")

	startHeight, err := utils.GetBlockHeightWithRetry(ctx, r.target, r.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to read start block height: %w", err)
	}
	start := Mark{Height: startHeight, Time: time.Now()}

	slog.Info(">>> Timing for target network...", "startHeight", startHeight, "timeout", r.cfg.Timeout)
	poller := &Poller{
		Events:     r.events,
		Heights:    r.target,
		Workload:   r.cfg.Workload,
		Target:     r.cfg.Count,
		Interval:   r.cfg.PollInterval,
		Timeout:    r.cfg.Timeout,
		MaxRetries: r.cfg.MaxRetries,
		Metrics:    r.metrics,
	}
	if r.cfg.ShowProgress && r.cfg.Count > 0 {
		poller.Bar = NewProgressBar(r.cfg.Count)
	}
	result, err := poller.Measure(ctx, start)
	if err != nil {
		return nil, err
	}
	result.Vault = vault
	slog.Info("<<< Done.")

	r.report(result)
	r.metrics.ObserveResult(result)
	if err := r.writer.WriteResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to write result: %w", err)
	}
	return result, nil
}

func (r *Runner) vaultInfo(ctx context.Context) (models.VaultInfo, error) {
	addr, err := r.target.VaultAddress(ctx, r.assets.Chain)
	if err != nil {
		return models.VaultInfo{}, fmt.Errorf("failed to get vault address: %w", err)
	}
	pubkey, err := r.target.VaultPubkey(ctx)
	if err != nil {
		return models.VaultInfo{}, fmt.Errorf("failed to get vault pubkey: %w", err)
	}
	return models.VaultInfo{Address: addr, PubKey: pubkey}, nil
}

// settle waits for the target network to advance SettleBlocks blocks, or for SettleDelay when
// SettleBlocks is zero.
func (r *Runner) settle(ctx context.Context, stage string) error {
	if r.cfg.SettleBlocks > 0 {
		height, err := utils.WaitForBlocks(ctx, r.target, r.cfg.SettleBlocks, r.cfg.SettleTimeout)
		if err != nil {
			return fmt.Errorf("failed to settle after %s: %w", stage, err)
		}
		slog.Debug("Settled", "stage", stage, "height", height)
		return nil
	}
	if r.cfg.SettleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(r.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) report(result *models.Result) {
	slog.Info("Benchmark complete",
		"type", result.Workload,
		"completed", result.Completed,
		"blocks", result.TotalBlocks,
		"seconds", result.TotalTime.Seconds(),
		"txPerSecond", fmt.Sprintf("%.2f", result.TxPerSecond()),
		"txPerBlock", fmt.Sprintf("%.2f", result.TxPerBlock()),
	)
}
