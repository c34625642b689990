package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidWorkload is returned when the workload type is neither swap nor add.
var ErrInvalidWorkload = errors.New("invalid tx type")

// Workload is the kind of transaction being benchmarked.
type Workload string

const (
	WorkloadSwap Workload = "swap"
	WorkloadAdd  Workload = "add"
)

// ParseWorkload returns the workload named by s.
func ParseWorkload(s string) (Workload, error) {
	switch w := Workload(strings.ToLower(strings.TrimSpace(s))); w {
	case WorkloadSwap, WorkloadAdd:
		return w, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidWorkload, s)
	}
}

// Matches reports whether an event of the given type completes a transaction of this workload.
func (w Workload) Matches(eventType string) bool {
	return strings.ToLower(eventType) == string(w)
}

func (w Workload) String() string {
	return string(w)
}

// BenchmarkConfig holds everything needed for a single benchmark run.
type BenchmarkConfig struct {
	SourceURL    string
	TargetURL    string
	WebsocketURL string
	Workload     Workload
	Count        int

	SourceChain string
	SourceAsset string
	TargetAsset string

	PollInterval  time.Duration
	Timeout       time.Duration
	SettleBlocks  uint64
	SettleTimeout time.Duration
	SettleDelay   time.Duration
	MaxRetries    uint
	RateLimit     float64

	ShowProgress bool
}

// OutputConfig selects where benchmark results are written.
type OutputConfig struct {
	Kind         string
	PostgresDSN  string
	KafkaBrokers []string
	KafkaTopic   string
	MetricsAddr  string
}

// Validate checks the configuration. It performs no I/O.
func (c BenchmarkConfig) Validate() error {
	if _, err := ParseWorkload(string(c.Workload)); err != nil {
		return err
	}
	if c.Count < 0 {
		return fmt.Errorf("transaction count must not be negative: %d", c.Count)
	}
	for name, raw := range map[string]string{
		"binance":             c.SourceURL,
		"mayachain":           c.TargetURL,
		"mayachain-websocket": c.WebsocketURL,
	} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid %s url %q: %w", name, raw, err)
		}
	}
	if c.SourceChain == "" || c.SourceAsset == "" || c.TargetAsset == "" {
		return errors.New("source chain and assets must be set")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %s", c.PollInterval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %s", c.Timeout)
	}
	return nil
}

// Validate checks the output selection.
func (c OutputConfig) Validate() error {
	switch c.Kind {
	case "", "none", "stdout":
		return nil
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("postgres output requires a DSN")
		}
		return nil
	case "kafka":
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return errors.New("kafka output requires brokers and a topic")
		}
		return nil
	default:
		return fmt.Errorf("unknown output %q", c.Kind)
	}
}
