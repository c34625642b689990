package benchie

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifest-network/benchie/internal/config"
	"github.com/manifest-network/benchie/internal/output"
	"github.com/manifest-network/benchie/internal/output/stdout"
)

func executeRoot(t *testing.T, args ...string) (*viper.Viper, error) {
	t.Helper()
	v := viper.New()
	cmd := newRootCmd(v)
	cmd.SetArgs(args)
	return v, cmd.ExecuteContext(context.Background())
}

func TestInvalidWorkloadMakesNoNetworkCalls(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := executeRoot(t,
		"--tx-type", "remove",
		"--binance", srv.URL,
		"--mayachain", srv.URL,
		"--mayachain-websocket", "ws"+srv.URL[len("http"):],
	)
	assert.ErrorIs(t, err, config.ErrInvalidWorkload)
	assert.Zero(t, hits.Load())
}

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	cmd := newRootCmd(v)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, out, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, config.WorkloadSwap, cfg.Workload)
	assert.Equal(t, 100, cfg.Count)
	assert.Equal(t, "http://localhost:26660", cfg.SourceURL)
	assert.Equal(t, "http://localhost:1317", cfg.TargetURL)
	assert.Equal(t, "ws://localhost:26657/websocket", cfg.WebsocketURL)
	assert.Equal(t, "BNB.BNB", cfg.SourceAsset)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
	assert.Equal(t, uint64(1), cfg.SettleBlocks)
	assert.True(t, cfg.ShowProgress)
	assert.Equal(t, "none", out.Kind)
}

func TestLoadConfigFlags(t *testing.T) {
	v := viper.New()
	cmd := newRootCmd(v)
	require.NoError(t, cmd.ParseFlags([]string{
		"--tx-type", "add", "--num", "3", "--no-progress", "--output", "stdout", "--timeout", "30s",
	}))

	cfg, out, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, config.WorkloadAdd, cfg.Workload)
	assert.Equal(t, 3, cfg.Count)
	assert.False(t, cfg.ShowProgress)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "stdout", out.Kind)
}

func TestLoadConfigInvalidOutput(t *testing.T) {
	v := viper.New()
	cmd := newRootCmd(v)
	require.NoError(t, cmd.ParseFlags([]string{"--output", "postgres"}))

	_, _, err := loadConfig(v)
	assert.ErrorContains(t, err, "requires a DSN")
}

func TestConfigFileAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchie.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num: 7\naliases:\n  bnb:\n    user-1: tbnb1custom\n"), 0o600))

	v := viper.New()
	cmd := newRootCmd(v)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))
	require.NoError(t, initConfig(v))

	assert.Equal(t, 7, v.GetInt("num"))
	assert.Equal(t, map[string]map[string]string{"bnb": {"user-1": "tbnb1custom"}}, aliasOverrides(v))
}

func TestNewResultWriter(t *testing.T) {
	w, err := newResultWriter(context.Background(), config.OutputConfig{Kind: "stdout"})
	require.NoError(t, err)
	assert.IsType(t, &stdout.OutputHandler{}, w)

	w, err = newResultWriter(context.Background(), config.OutputConfig{Kind: "none"})
	require.NoError(t, err)
	assert.IsType(t, output.Discard{}, w)
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "INFO", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "trace", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			level, err := parseLogLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, level)
		})
	}
}
