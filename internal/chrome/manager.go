package chrome

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"groucho/internal/config"
	"groucho/internal/eventbus"
	"groucho/internal/events"
	"groucho/internal/store"
)

// DefaultProfile is the profile used when none is named.
const DefaultProfile = "default"

var devFlags = []string{
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-features=TranslateUI",
	"--disable-extensions",
	"--disable-background-timer-throttling",
	"--disable-backgrounding-occluded-windows",
	"--disable-renderer-backgrounding",
}

// lockFiles are the per-profile singleton markers Chrome leaves behind.
var lockFiles = []string{"SingletonLock", "SingletonSocket", "SingletonCookie"}

// Manager starts and stops a debuggable Chrome and manages its profiles.
type Manager struct {
	cfg    *config.Config
	bus    *eventbus.Bus
	store  *store.Store
	client *http.Client
	log    *logrus.Entry

	startWait     time.Duration
	probeInterval time.Duration
	probeAttempts int
	stopTimeout   time.Duration
	now           func() time.Time
}

type Option func(*Manager)

// WithStore catalogues backups and verifies them on restore.
func WithStore(s *store.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithTiming overrides the pause after launch, the DevTools probe interval
// and the graceful stop timeout.
func WithTiming(startWait, probeInterval, stopTimeout time.Duration) Option {
	return func(m *Manager) {
		m.startWait = startWait
		m.probeInterval = probeInterval
		m.stopTimeout = stopTimeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(cfg *config.Config, bus *eventbus.Bus, opts ...Option) *Manager {
	m := &Manager{
		cfg:           cfg,
		bus:           bus,
		client:        &http.Client{Timeout: 2 * time.Second},
		log:           logrus.WithField("process", "chrome"),
		startWait:     2 * time.Second,
		probeInterval: 500 * time.Millisecond,
		probeAttempts: 10,
		stopTimeout:   5 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) emit(event, message string, fields map[string]string) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(event, events.Payload{Message: message, Fields: fields})
}

// VersionInfo is the DevTools /json/version document.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DevTools queries the remote debugging endpoint.
func (m *Manager) DevTools(ctx context.Context) (*VersionInfo, error) {
	url := fmt.Sprintf("http://127.0.0.1:%d/json/version", m.cfg.Chrome.DebugPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devtools answered %s", resp.Status)
	}
	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "failed to decode devtools version")
	}
	return &info, nil
}

func (m *Manager) debuggingAvailable(ctx context.Context) bool {
	_, err := m.DevTools(ctx)
	return err == nil
}

// IsRunning reports whether the Chrome we started is alive, or whether
// anything answers on the debugging port.
func (m *Manager) IsRunning(ctx context.Context) bool {
	if st, err := config.LoadState(m.cfg.ProjectRoot); err == nil && st.Chrome != nil {
		if alive(ctx, st.Chrome.PID) {
			return true
		}
	}
	return m.debuggingAvailable(ctx)
}

// StartResult describes the outcome of Start.
type StartResult struct {
	AlreadyRunning bool
	PID            int
	Profile        string
	Port           int
	DebugReady     bool
}

// LaunchArgs builds the Chrome command line for a profile directory.
func (m *Manager) LaunchArgs(profileDir, url string, extra []string) []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(m.cfg.Chrome.DebugPort),
		"--user-data-dir=" + profileDir,
	}
	args = append(args, devFlags...)
	args = append(args, extra...)
	if url == "" {
		url = m.cfg.DevURL
	}
	return append(args, url)
}

// Start launches Chrome with remote debugging on profile, opening url (the
// dev URL when empty). A running Chrome is reported, not restarted.
func (m *Manager) Start(ctx context.Context, profile, url string, extra []string) (StartResult, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	res := StartResult{Profile: profile, Port: m.cfg.Chrome.DebugPort}

	dir, err := m.ProfilePath(profile)
	if err != nil {
		return res, err
	}
	if m.IsRunning(ctx) {
		res.AlreadyRunning = true
		return res, nil
	}

	exe, err := Detect(m.cfg.Chrome.Executable)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return res, errors.Wrap(err, "failed to create profile directory")
	}

	args := m.LaunchArgs(dir, url, extra)
	m.log.Debugf("starting chrome: %s %s", exe, strings.Join(args, " "))

	// not CommandContext: the browser outlives this invocation
	cmd := exec.Command(exe, args...)
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return res, errors.Wrap(err, "failed to start chrome")
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	select {
	case err := <-exited:
		if err != nil {
			return res, errors.Wrap(ErrExitedEarly, err.Error())
		}
		return res, ErrExitedEarly
	case <-ctx.Done():
		_ = signalGroup(cmd.Process.Pid, true)
		return res, ctx.Err()
	case <-time.After(m.startWait):
	}
	res.PID = cmd.Process.Pid

	for i := 0; i < m.probeAttempts; i++ {
		if m.debuggingAvailable(ctx) {
			res.DebugReady = true
			break
		}
		select {
		case <-ctx.Done():
			_ = signalGroup(cmd.Process.Pid, true)
			res.PID = 0
			return res, ctx.Err()
		case <-time.After(m.probeInterval):
		}
	}
	if !res.DebugReady {
		m.log.Warnf("chrome started but debugging port %d is not responding", res.Port)
	}

	st, err := config.LoadState(m.cfg.ProjectRoot)
	if err != nil {
		st = &config.State{}
	}
	st.Chrome = &config.ChromeState{
		PID:        res.PID,
		Profile:    profile,
		Port:       res.Port,
		Executable: exe,
		StartedAt:  m.now(),
	}
	if err := st.Save(m.cfg.ProjectRoot); err != nil {
		m.log.Warnf("failed to save chrome state: %v", err)
	}

	m.emit(events.ChromeStarted, fmt.Sprintf("chrome started with remote debugging on port %d", res.Port), map[string]string{
		"pid":     strconv.Itoa(res.PID),
		"profile": profile,
	})
	return res, nil
}

// Stop terminates the Chrome we started: SIGTERM to its process group, then
// SIGKILL when it has not exited within the stop timeout. force skips the
// graceful step. It returns false when nothing was running.
func (m *Manager) Stop(ctx context.Context, force bool) (bool, error) {
	st, err := config.LoadState(m.cfg.ProjectRoot)
	if err != nil {
		return false, err
	}
	if st.Chrome == nil || !alive(ctx, st.Chrome.PID) {
		if m.debuggingAvailable(ctx) {
			return false, ErrUnmanaged
		}
		if st.Chrome != nil {
			st.Chrome = nil
			_ = st.Save(m.cfg.ProjectRoot)
		}
		m.cleanupLockFiles()
		return false, nil
	}

	pid := st.Chrome.PID
	graceful := false
	if !force {
		if err := signalGroup(pid, false); err != nil {
			m.log.Debugf("SIGTERM failed: %v", err)
		}
		graceful = waitExit(ctx, pid, m.stopTimeout)
	}
	if !graceful {
		if err := signalGroup(pid, true); err != nil && alive(ctx, pid) {
			return false, errors.Wrap(err, "failed to stop chrome")
		}
		if !waitExit(ctx, pid, 2*time.Second) {
			return false, fmt.Errorf("chrome (pid %d) did not exit", pid)
		}
	}

	m.cleanupLockFiles()
	st.Chrome = nil
	if err := st.Save(m.cfg.ProjectRoot); err != nil {
		m.log.Warnf("failed to clear chrome state: %v", err)
	}

	how := "gracefully"
	if !graceful {
		how = "by force"
	}
	m.emit(events.ChromeStopped, "chrome stopped "+how, map[string]string{"pid": strconv.Itoa(pid)})
	return true, nil
}

func (m *Manager) cleanupLockFiles() {
	entries, err := os.ReadDir(m.cfg.Chrome.ProfilesPath)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, name := range lockFiles {
			p := filepath.Join(m.cfg.Chrome.ProfilesPath, e.Name(), name)
			if _, err := os.Lstat(p); err != nil {
				continue
			}
			if err := os.Remove(p); err != nil {
				m.log.Warnf("failed to remove lock file %s: %v", p, err)
			} else {
				m.log.Debugf("removed lock file %s", p)
			}
		}
	}
}

// Status is a snapshot of the browser side of the tooling.
type Status struct {
	Running            bool
	PID                int
	Port               int
	DebuggingAvailable bool
	ChromePath         string
	Profile            string
	ProfilePath        string
	Browser            string
	StartedAt          time.Time
}

func (m *Manager) Status(ctx context.Context) Status {
	s := Status{Port: m.cfg.Chrome.DebugPort, Profile: DefaultProfile}
	if exe, err := Detect(m.cfg.Chrome.Executable); err == nil {
		s.ChromePath = exe
	}

	if st, err := config.LoadState(m.cfg.ProjectRoot); err == nil && st.Chrome != nil && alive(ctx, st.Chrome.PID) {
		s.Running = true
		s.PID = st.Chrome.PID
		s.Profile = st.Chrome.Profile
		s.StartedAt = st.Chrome.StartedAt
		if st.Chrome.Executable != "" {
			s.ChromePath = st.Chrome.Executable
		}
	}
	s.ProfilePath, _ = m.ProfilePath(s.Profile)

	if info, err := m.DevTools(ctx); err == nil {
		s.DebuggingAvailable = true
		s.Running = true
		s.Browser = info.Browser
	}
	return s
}
