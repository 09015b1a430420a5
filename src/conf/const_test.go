package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullVersion(t *testing.T) {
	t.Parallel()
	version := FullVersion()
	assert.Equal(t, fmt.Sprintf("%v Copyright (C) %v", LUNAVERSION, time.Now().Year()), version)
}

func TestCopyright(t *testing.T) {
	t.Parallel()
	copyright := Copyright()
	assert.Equal(t, fmt.Sprintf("Copyright (C) %v", time.Now().Year()), copyright)
}

func TestParse(t *testing.T) {
	t.Parallel()
	testcases := []struct {
		desc string
		data string
		err  string
		chk  func(t *testing.T, cfg Config)
	}{
		{desc: "empty keeps defaults", data: "", chk: func(t *testing.T, cfg Config) {
			t.Helper()
			assert.Equal(t, Default(), cfg)
		}},
		{desc: "overrides", data: "max_call_depth = 10\n[gc]\ngen0_threshold = 5\n", chk: func(t *testing.T, cfg Config) {
			t.Helper()
			assert.Equal(t, 10, cfg.MaxCallDepth)
			assert.Equal(t, 5, cfg.GC.Gen0Threshold)
			assert.Equal(t, GCGEN1THRESHOLD, cfg.GC.Gen1Threshold)
		}},
		{desc: "unknown key", data: "stack = 1\n", err: "unknown keys stack"},
		{desc: "bad stack", data: "initial_stack_size = 0\n", err: "initial_stack_size must be positive"},
		{desc: "bad max", data: "initial_stack_size = 10\nmax_stack_size = 5\n", err: "below initial_stack_size"},
		{desc: "bad gc", data: "[gc]\ngen1_threshold = -1\n", err: "gc thresholds"},
		{desc: "bad toml", data: "= =", err: "config:"},
	}
	for _, tc := range testcases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			cfg, err := Parse(tc.data)
			if tc.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.err)
				return
			}
			require.NoError(t, err)
			tc.chk(t, cfg)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "luna.toml")
	require.NoError(t, os.WriteFile(path, []byte("warn = true\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Warn)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
