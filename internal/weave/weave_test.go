package weave_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/specs-feup/weaver/internal/session"
	"github.com/specs-feup/weaver/internal/weave"

	"github.com/stretchr/testify/require"
)

// fakeTool mimics the command line contract of the weaving tools:
//
//	tool classic <script> -p <input> -o <outdir> [args...]
//
// The script is sourced as shell, so every test decides what the tool does.
const fakeTool = `script=$2
input=$4
out=$6
shift 6
. "$script"
`

type observed struct {
	mx       sync.Mutex
	outcomes []string
}

func (o *observed) ObserveJob(outcome string, _ time.Duration) {
	o.mx.Lock()
	defer o.mx.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *observed) all() []string {
	o.mx.Lock()
	defer o.mx.Unlock()
	return append([]string(nil), o.outcomes...)
}

type fixture struct {
	tool     string
	sessions *session.Manager
	executor *weave.Executor
	observer *observed
}

func newFixture(t *testing.T, timeout time.Duration) fixture {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	dir := t.TempDir()
	tool := filepath.Join(dir, "fake-weaver")
	require.NoError(t, os.WriteFile(tool, []byte(fakeTool), 0o644))

	sessions := session.NewManager(filepath.Join(dir, "temp"))
	observer := &observed{}
	executor := weave.NewExecutor(weave.Config{
		Launcher:   sh,
		ScriptName: "exec.js",
		Timeout:    timeout,
		KillGrace:  time.Second,
	}, sessions).WithObserver(observer)
	return fixture{
		tool:     tool,
		sessions: sessions,
		executor: executor,
		observer: observer,
	}
}

func writeOutputs(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	out := filepath.Join(dir, weave.OutputDir)
	require.NoError(t, os.MkdirAll(out, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(out, name), []byte(content), 0o644))
	}
}
