package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"groucho/internal/chrome"
	"groucho/internal/config"
	"groucho/internal/docker"
	mockdocker "groucho/internal/docker/mock"
	"groucho/internal/events"
	"groucho/internal/store"
	"groucho/internal/util"
)

func freePort(t *testing.T) int {
	t.Helper()
	port, err := util.GetFreeTCPPort("")
	require.NoError(t, err)
	return port
}

// dockerMocks stand in for the docker CLI and daemon. The daemon answers
// pings with pingErr.
type dockerMocks struct {
	runner  *mockdocker.MockRunner
	engine  *mockdocker.MockEngine
	pingErr error
}

// setupProject points the CLI at a temporary project served through docker
// mocks.
func setupProject(t *testing.T) (*config.Config, *dockerMocks) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"docker-compose.yml", "docker-compose.prod.yml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("services: {}\n"), 0644))
	}
	t.Setenv("GROUPCHO_PROJECT_ROOT", dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHROME_PATH", "")
	t.Setenv("GROUPCHO_DEV_PORT", strconv.Itoa(freePort(t)))
	t.Setenv("GROUPCHO_PROD_PORT", strconv.Itoa(freePort(t)))
	t.Setenv("GROUPCHO_CHROME_DEBUG_PORT", strconv.Itoa(freePort(t)))

	cfg, err := config.Load()
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	m := &dockerMocks{
		runner: mockdocker.NewMockRunner(ctrl),
		engine: mockdocker.NewMockEngine(ctrl),
	}
	m.engine.EXPECT().Ping(gomock.Any()).DoAndReturn(func(context.Context) error { return m.pingErr }).AnyTimes()
	m.engine.EXPECT().Close().Return(nil).AnyTimes()

	oldRunner, oldEngine := newRunner, newEngine
	newRunner = func() docker.Runner { return m.runner }
	newEngine = func() docker.Engine { return m.engine }
	t.Cleanup(func() { newRunner, newEngine = oldRunner, oldEngine })
	return cfg, m
}

// run executes args against a fresh command tree.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "groucho", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(subcommands()...)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (m *dockerMocks) expectInspect(cfg *config.Config, dev bool, st docker.Status) *gomock.Call {
	return m.engine.EXPECT().Inspect(gomock.Any(), cfg.ContainerName(dev)).Return(st, nil)
}

func missing(cfg *config.Config, dev bool) docker.Status {
	return docker.Status{Name: cfg.ContainerName(dev), State: "not_created", Health: "unknown"}
}

func runningStatus(cfg *config.Config, dev bool) docker.Status {
	return docker.Status{
		Exists:  true,
		Running: true,
		Name:    cfg.ContainerName(dev),
		State:   "running",
		Health:  "healthy",
		Image:   cfg.ContainerName(dev) + ":latest",
	}
}

func TestEnvFlagsAreExclusive(t *testing.T) {
	setupProject(t)

	_, err := run(t, "start", "--dev", "--prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others")
}

func TestEnvSelection(t *testing.T) {
	assert.Equal(t, []bool{true, false}, (&envFlags{}).envs())
	assert.Equal(t, []bool{true}, (&envFlags{dev: true}).envs())
	assert.Equal(t, []bool{false}, (&envFlags{prod: true}).envs())
	assert.True(t, (&envFlags{}).isDev())
	assert.False(t, (&envFlags{prod: true}).isDev())
}

func TestStatusNotCreated(t *testing.T) {
	cfg, m := setupProject(t)
	m.expectInspect(cfg, false, missing(cfg, false))

	out, err := run(t, "status", "--prod")
	require.NoError(t, err)
	assert.Contains(t, out, "Production Environment")
	assert.Contains(t, out, "Not Created")
	assert.NotContains(t, out, "Development Environment")
}

func TestExecPrintsOutput(t *testing.T) {
	cfg, m := setupProject(t)
	gomock.InOrder(
		m.expectInspect(cfg, true, runningStatus(cfg, true)),
		m.engine.EXPECT().Exec(gomock.Any(), cfg.DevContainer, []string{"echo", "hello world"}).
			Return(docker.Result{Stdout: "hello world\n"}, nil),
	)

	out, err := run(t, "exec", `echo "hello world"`)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}

func TestExecReportsExitStatus(t *testing.T) {
	cfg, m := setupProject(t)
	gomock.InOrder(
		m.expectInspect(cfg, true, runningStatus(cfg, true)),
		m.engine.EXPECT().Exec(gomock.Any(), cfg.DevContainer, gomock.Any()).
			Return(docker.Result{ExitCode: 2, Stderr: "lint failed\n"}, nil),
	)

	out, err := run(t, "exec", "npm run lint")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 2")
	assert.Contains(t, out, "lint failed")
}

func TestDockerCommandsNeedDaemon(t *testing.T) {
	_, m := setupProject(t)
	m.pingErr = errors.New("Cannot connect to the Docker daemon at unix:///var/run/docker.sock")

	_, err := run(t, "status")
	require.Error(t, err)
	assert.ErrorIs(t, err, docker.ErrDaemonUnavailable)
	assert.Contains(t, err.Error(), "make sure Docker is installed and running")
}

func TestStopVolumesOnStoppedContainer(t *testing.T) {
	cfg, m := setupProject(t)
	stopped := docker.Status{Exists: true, Name: cfg.DevContainer, State: "exited", Health: "unknown"}
	gomock.InOrder(
		m.expectInspect(cfg, true, stopped),
		m.runner.EXPECT().Run(gomock.Any(), cfg.ProjectRoot, []string{"compose", "-f", cfg.ComposeDev, "down", "-v"}).
			Return(docker.Result{}, nil),
	)

	_, err := run(t, "stop", "--volumes")
	require.NoError(t, err)
}

func TestCleanCancelled(t *testing.T) {
	setupProject(t)
	old := confirm
	confirm = func(string) bool { return false }
	t.Cleanup(func() { confirm = old })

	_, err := run(t, "clean")
	assert.NoError(t, err)
}

func TestCleanForce(t *testing.T) {
	cfg, m := setupProject(t)
	down := func(file string) []string {
		return []string{"compose", "-f", file, "down", "-v", "--remove-orphans"}
	}
	require.Len(t, cfg.Images, 2)
	gomock.InOrder(
		m.runner.EXPECT().Run(gomock.Any(), cfg.ProjectRoot, down(cfg.ComposeDev)).Return(docker.Result{}, nil),
		m.runner.EXPECT().Run(gomock.Any(), cfg.ProjectRoot, down(cfg.ComposeProd)).Return(docker.Result{}, nil),
		m.engine.EXPECT().RemoveImage(gomock.Any(), cfg.Images[0]).Return(nil),
		m.engine.EXPECT().RemoveImage(gomock.Any(), cfg.Images[1]).Return(nil),
	)

	_, err := run(t, "clean", "--force")
	assert.NoError(t, err)

	st, err := store.Open(cfg.DBPath())
	require.NoError(t, err)
	defer st.Close()
	entries, err := st.Recent(10, "docker.")
	require.NoError(t, err)
	assert.Len(t, entries, 2, "both environments journal docker.<env>.cleaned")
}

func TestHistoryCommand(t *testing.T) {
	cfg, _ := setupProject(t)

	st, err := store.Open(cfg.DBPath())
	require.NoError(t, err)
	require.NoError(t, st.Record("chrome.started", "chrome.*", events.Payload{Message: "chrome started on port 9222"}))
	require.NoError(t, st.Record("docker.dev.started", "docker.*", events.Payload{Env: "dev", Message: "development environment started"}))
	require.NoError(t, st.Close())

	out, err := run(t, "history", "--event", "chrome")
	require.NoError(t, err)
	assert.Contains(t, out, "chrome.started")
	assert.Contains(t, out, "chrome started on port 9222")
	assert.NotContains(t, out, "docker.dev.started")
	assert.Contains(t, out, "2 events recorded, 0 profile backups catalogued")
}

func TestHistoryEmpty(t *testing.T) {
	setupProject(t)
	out, err := run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No events recorded.")
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "started", summary(`{"env":"dev","message":"started"}`))
	assert.Equal(t, `"plain"`, summary(`"plain"`))
	assert.Equal(t, "", summary(""))
}

func TestStatusLine(t *testing.T) {
	cfg, m := setupProject(t)
	m.expectInspect(cfg, true, runningStatus(cfg, true))
	m.expectInspect(cfg, false, missing(cfg, false))

	a, err := newApp(appOptions{quiet: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "Dev:RUN | Prod:-- | Chr:STOP", statusLine(context.Background(), a))
}

func TestChromeStartNeedsDashForExtraArgs(t *testing.T) {
	c := newChromeStartCmd()

	require.NoError(t, c.ParseFlags([]string{"--profile", "qa", "stray"}))
	assert.Error(t, c.Args(c, c.Flags().Args()))

	c = newChromeStartCmd()
	require.NoError(t, c.ParseFlags([]string{"--", "--auto-open-devtools-for-tabs"}))
	assert.NoError(t, c.Args(c, c.Flags().Args()))
}

func TestRenderChromeStatus(t *testing.T) {
	var buf bytes.Buffer
	renderChromeStatus(&buf, chrome.Status{Port: 9222, Profile: "default", ProfilePath: "/p/chrome-profile-groucho"})
	out := buf.String()
	assert.Contains(t, out, "Debugging Available")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "not found")
	assert.NotContains(t, out, "DevTools")

	buf.Reset()
	renderChromeStatus(&buf, chrome.Status{Running: true, DebuggingAvailable: true, PID: 42, Port: 9333, Browser: "Chrome/126.0"})
	assert.Contains(t, buf.String(), "Chrome/126.0")
	assert.Contains(t, buf.String(), "http://localhost:9333/json/list")
}

func TestProjectIsRecorded(t *testing.T) {
	cfg, _ := setupProject(t)

	a, err := newApp(appOptions{quiet: true})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	data, err := os.ReadFile(filepath.Join(os.Getenv("HOME"), ".groucho", "projects.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), cfg.ProjectRoot)
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "Groucho CLI version dev\n", out.String())
}

func TestDashboardActions(t *testing.T) {
	actions := dashboardActions(&app{})

	keys := map[string]bool{}
	handoff := map[string]bool{}
	for _, a := range actions {
		assert.False(t, keys[a.Key], "duplicate key %q", a.Key)
		keys[a.Key] = true
		if a.Handoff {
			handoff[a.Title] = true
		}
		if !a.Quit {
			assert.NotNil(t, a.Run, a.Title)
		}
	}
	assert.Equal(t, map[string]bool{"Shell (development)": true, "Clean all docker resources": true}, handoff)
	assert.True(t, actions[len(actions)-1].Quit)
}

func TestCleanupRequestReleasesApp(t *testing.T) {
	setupProject(t)

	a, err := newApp(appOptions{quiet: true})
	require.NoError(t, err)
	require.NotEmpty(t, a.bus.Events(), "journal listeners are attached")

	events.RequestCleanup("grace period expired")

	assert.Empty(t, a.bus.Events())
	assert.NoError(t, a.Close())
}
