package utils

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// HeightSource reports the latest block height of a chain.
type HeightSource interface {
	BlockHeight(ctx context.Context) (int64, error)
}

var heightPattern = regexp.MustCompile(`^\d+$`)

// ParseHeight parses a block height as reported by the node's JSON APIs.
func ParseHeight(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !heightPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid block height %q", s)
	}
	height, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.WithMessage(err, "error parsing height")
	}
	return height, nil
}

// newBackOff retries until ctx is done, or maxRetries times when maxRetries is positive.
func newBackOff(ctx context.Context, maxRetries uint) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	var bo backoff.BackOff = b
	if maxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(maxRetries))
	}
	return backoff.WithContext(bo, ctx)
}

// GetBlockHeightWithRetry reads the current block height, retrying transient failures up to maxRetries times.
func GetBlockHeightWithRetry(ctx context.Context, src HeightSource, maxRetries uint) (int64, error) {
	var height int64
	op := func() error {
		h, err := src.BlockHeight(ctx)
		if err != nil {
			slog.Debug("Failed to get block height, retrying", "error", err)
			return err
		}
		height = h
		return nil
	}
	if err := backoff.Retry(op, newBackOff(ctx, maxRetries)); err != nil {
		return 0, fmt.Errorf("failed to get block height after %d retries: %w", maxRetries, err)
	}
	return height, nil
}

// WaitForBlocks blocks until the chain height is at least `blocks` above its height at call time.
// It gives up after timeout and returns the last height observed together with the error.
func WaitForBlocks(ctx context.Context, src HeightSource, blocks uint64, timeout time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start, err := GetBlockHeightWithRetry(ctx, src, 0)
	if err != nil {
		return 0, err
	}
	target := start + int64(blocks)
	last := start

	op := func() error {
		h, err := src.BlockHeight(ctx)
		if err != nil {
			return err
		}
		last = h
		if h < target {
			return fmt.Errorf("block height %d has not reached %d", h, target)
		}
		return nil
	}
	if err := backoff.Retry(op, newBackOff(ctx, 0)); err != nil {
		return last, fmt.Errorf("chain did not advance %d blocks from height %d within %s: %w", blocks, start, timeout, err)
	}
	slog.Debug("Chain advanced", "from", start, "to", last)
	return last, nil
}
