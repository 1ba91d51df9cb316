package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/specs-feup/weaver/internal/model"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultConfig()
	require.NoError(t, cfg.Check())

	require.Equal(t, ":4000", cfg.Server.Addr)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeoutDuration())
	require.Zero(t, cfg.Server.WriteTimeoutDuration())
	require.Equal(t, int64(10<<20), cfg.Server.MaxBody)
	require.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	require.Equal(t, "npx", cfg.Weaver.Launcher)
	require.Equal(t, "exec.js", cfg.Weaver.ScriptName())
	require.Equal(t, "temp", cfg.Weaver.TempDir)
	require.Zero(t, cfg.Weaver.TimeoutDuration())
	require.Equal(t, 5*time.Second, cfg.Weaver.KillGraceDuration())

	require.Equal(t, 6, cfg.Pool.Size)

	require.True(t, cfg.Janitor.Enabled)
	require.Equal(t, "@every 10m", cfg.Janitor.Schedule)
	require.Equal(t, time.Hour, cfg.Janitor.MaxAgeDuration())

	require.False(t, cfg.Service.Verbose)
	require.Equal(t, "stderr", cfg.Service.Log)
	require.True(t, cfg.Service.Metrics)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	yml := `
version: 0
server:
  addr: 127.0.0.1:8080
weaver:
  launcher: /usr/local/bin/npx
  timeout: 90s
  env:
    NODE_OPTIONS: --max-old-space-size=4096
pool:
  size: 2
janitor:
  schedule: "*/5 * * * *"
service:
  log: discard
  verbose: true
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeoutDuration())
	require.Equal(t, "/usr/local/bin/npx", cfg.Weaver.Launcher)
	require.Equal(t, 90*time.Second, cfg.Weaver.TimeoutDuration())
	require.Equal(t, []string{"NODE_OPTIONS=--max-old-space-size=4096"}, cfg.Weaver.EnvList())
	require.Equal(t, 2, cfg.Pool.Size)
	require.Equal(t, "*/5 * * * *", cfg.Janitor.Schedule)
	require.Equal(t, "discard", cfg.Service.Log)
	require.True(t, cfg.Service.Verbose)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		yml      string
	}{
		{
			scenario: "unknown field",
			yml:      "service:\n  bogus: true\n",
		},
		{
			scenario: "log sink",
			yml:      "service:\n  log: syslog\n",
		},
		{
			scenario: "pool size",
			yml:      "pool:\n  size: 0\n",
		},
		{
			scenario: "duration",
			yml:      "weaver:\n  timeout: soon\n",
		},
		{
			scenario: "empty launcher",
			yml:      "weaver:\n  launcher: \"\"\n",
		},
		{
			scenario: "script extension",
			yml:      "weaver:\n  script_ext: ../js\n",
		},
		{
			scenario: "version",
			yml:      "version: 1\n",
		},
		{
			scenario: "schedule",
			yml:      "janitor:\n  schedule: every now and then\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tc.yml))
			require.Error(t, err)
		})
	}
}

func TestCueErrDetails(t *testing.T) {
	t.Parallel()
	_, err := model.LoadConfig(strings.NewReader("service:\n  bogus: true\n"))
	require.Error(t, err)

	details := model.CueErrDetails(err)
	require.NotEmpty(t, details)
	for _, d := range details {
		require.NotEmpty(t, d.Code)
		require.NotEmpty(t, d.Message)
		require.NotEmpty(t, d.Pos.Filename)
	}

	require.Nil(t, model.CueErrDetails(nil))
}

func TestCueErrDetails_Alternatives(t *testing.T) {
	t.Parallel()
	msg := model.LogAlternatives()
	require.True(t, strings.HasPrefix(msg, ": possible values ("), msg)
	require.Contains(t, msg, "stdout")
	require.Contains(t, msg, "discard")
	require.True(t, strings.HasSuffix(msg, " (default stderr)"), msg)

	require.Empty(t, model.PoolAlternatives())
}

func TestCheck(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultConfig()
	cfg.Weaver.KillGrace = "-1s"
	cfg.Pool.Size = 0
	err := cfg.Check()
	require.Error(t, err)
	require.ErrorContains(t, err, "weaver.kill_grace")
	require.ErrorContains(t, err, "pool.size")

	cfg = model.DefaultConfig()
	cfg.Janitor.Enabled = false
	cfg.Janitor.Schedule = "garbage"
	require.NoError(t, cfg.Check())
}
