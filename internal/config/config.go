package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"groucho/internal/util"
)

const (
	ConfigFileName = "groucho.yaml"
	StateDirName   = ".groucho"
	EnvPrefix      = "GROUPCHO_"
)

// Config holds every setting the CLI needs. Values come from the built-in
// defaults, then groucho.yaml at the project root, then GROUPCHO_* variables.
type Config struct {
	ProjectRoot   string   `yaml:"project_root"`
	ComposeDev    string   `yaml:"compose_dev"`
	ComposeProd   string   `yaml:"compose_prod"`
	DevPort       int      `yaml:"dev_port"`
	ProdPort      int      `yaml:"prod_port"`
	HMRPort       int      `yaml:"hmr_port"`
	DevContainer  string   `yaml:"dev_container"`
	ProdContainer string   `yaml:"prod_container"`
	DevService    string   `yaml:"dev_service"`
	ProdService   string   `yaml:"prod_service"`
	LogLevel      string   `yaml:"log_level"`
	DevURL        string   `yaml:"dev_url"`
	ProdURL       string   `yaml:"prod_url"`
	Images        []string `yaml:"images"`
	Chrome        Chrome   `yaml:"chrome"`
}

type Chrome struct {
	ProfilesPath string `yaml:"profiles_path"`
	Executable   string `yaml:"executable"`
	DebugPort    int    `yaml:"debug_port"`
}

var validLogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

// Defaults returns the built-in configuration rooted at root.
func Defaults(root string) *Config {
	return &Config{
		ProjectRoot:   root,
		ComposeDev:    "docker-compose.yml",
		ComposeProd:   "docker-compose.prod.yml",
		DevPort:       3000,
		ProdPort:      8080,
		HMRPort:       24678,
		DevContainer:  "groucho-the-hunter-dev",
		ProdContainer: "groucho-the-hunter",
		DevService:    "groucho-dev",
		ProdService:   "groucho",
		LogLevel:      "INFO",
		Images:        []string{"groucho-the-hunter:latest", "groucho-the-hunter-dev:latest"},
		Chrome: Chrome{
			ProfilesPath: ".chrome-profiles",
			DebugPort:    9222,
		},
	}
}

// Load resolves the project root and builds the layered configuration. It
// does not validate; see Validate and LoadAndValidate.
func Load() (*Config, error) {
	root := os.Getenv(EnvPrefix + "PROJECT_ROOT")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = util.FindProjectRoot(wd)
	}
	return LoadFrom(root)
}

// LoadFrom builds the configuration for an explicit project root.
func LoadFrom(root string) (*Config, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	// .env never overrides variables already set in the process
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	cfg := Defaults(root)

	cfgPath := filepath.Join(root, ConfigFileName)
	if data, err := os.ReadFile(cfgPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", ConfigFileName, err)
		}
		// the file cannot move the root it was found in
		cfg.ProjectRoot = root
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("error reading %s: %w", ConfigFileName, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.resolve()
	return cfg, nil
}

// LoadAndValidate is Load followed by Validate.
func LoadAndValidate() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []string

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s must be a number, got %q", EnvPrefix, key, v))
			return
		}
		*dst = n
	}

	str("COMPOSE_DEV", &c.ComposeDev)
	str("COMPOSE_PROD", &c.ComposeProd)
	num("DEV_PORT", &c.DevPort)
	num("PROD_PORT", &c.ProdPort)
	num("HMR_PORT", &c.HMRPort)
	str("DEV_CONTAINER", &c.DevContainer)
	str("PROD_CONTAINER", &c.ProdContainer)
	str("DEV_SERVICE", &c.DevService)
	str("PROD_SERVICE", &c.ProdService)
	str("LOG_LEVEL", &c.LogLevel)
	str("DEV_URL", &c.DevURL)
	str("PROD_URL", &c.ProdURL)
	str("CHROME_PROFILES_PATH", &c.Chrome.ProfilesPath)
	num("CHROME_DEBUG_PORT", &c.Chrome.DebugPort)

	if v := os.Getenv("CHROME_PATH"); v != "" {
		c.Chrome.Executable = v
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

// resolve makes paths absolute and fills the URLs that follow the ports.
func (c *Config) resolve() {
	c.ComposeDev = c.abs(c.ComposeDev)
	c.ComposeProd = c.abs(c.ComposeProd)
	c.Chrome.ProfilesPath = c.abs(c.Chrome.ProfilesPath)
	if c.DevURL == "" {
		c.DevURL = fmt.Sprintf("http://localhost:%d", c.DevPort)
	}
	if c.ProdURL == "" {
		c.ProdURL = fmt.Sprintf("http://localhost:%d", c.ProdPort)
	}
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectRoot, p)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var validationErrors []string

	if _, err := os.Stat(c.ProjectRoot); os.IsNotExist(err) {
		validationErrors = append(validationErrors, fmt.Sprintf("project root does not exist: %s", c.ProjectRoot))
	}
	if _, err := os.Stat(c.ComposeDev); os.IsNotExist(err) {
		validationErrors = append(validationErrors, fmt.Sprintf("development docker-compose not found: %s", c.ComposeDev))
	}
	if _, err := os.Stat(c.ComposeProd); os.IsNotExist(err) {
		validationErrors = append(validationErrors, fmt.Sprintf("production docker-compose not found: %s", c.ComposeProd))
	}

	for _, p := range []struct {
		name string
		port int
	}{
		{"dev_port", c.DevPort},
		{"prod_port", c.ProdPort},
		{"hmr_port", c.HMRPort},
		{"chrome.debug_port", c.Chrome.DebugPort},
	} {
		if p.port < 1 || p.port > 65535 {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid %s: %d (must be 1-65535)", p.name, p.port))
		}
	}

	if !validLogLevel(c.LogLevel) {
		validationErrors = append(validationErrors, fmt.Sprintf("invalid log level: %s (must be one of %s)", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}

func validLogLevel(level string) bool {
	level = strings.ToUpper(strings.TrimSpace(level))
	for _, l := range validLogLevels {
		if l == level {
			return true
		}
	}
	return false
}

func (c *Config) ComposeFile(dev bool) string {
	if dev {
		return c.ComposeDev
	}
	return c.ComposeProd
}

func (c *Config) ContainerName(dev bool) string {
	if dev {
		return c.DevContainer
	}
	return c.ProdContainer
}

func (c *Config) ServiceName(dev bool) string {
	if dev {
		return c.DevService
	}
	return c.ProdService
}

func (c *Config) URL(dev bool) string {
	if dev {
		return c.DevURL
	}
	return c.ProdURL
}

func (c *Config) Port(dev bool) int {
	if dev {
		return c.DevPort
	}
	return c.ProdPort
}

// EnvLabel is the human name of an environment.
func EnvLabel(dev bool) string {
	if dev {
		return "development"
	}
	return "production"
}

// StateDir is the per-project directory for state, logs and the database.
func (c *Config) StateDir() string {
	return filepath.Join(c.ProjectRoot, StateDirName)
}

func (c *Config) DBPath() string {
	return filepath.Join(c.StateDir(), "groucho.db")
}

func (c *Config) LogFile() string {
	return filepath.Join(c.StateDir(), "logs", "groucho.log")
}

// Exists reports whether the project root carries a groucho.yaml.
func (c *Config) Exists() bool {
	_, err := os.Stat(filepath.Join(c.ProjectRoot, ConfigFileName))
	return err == nil
}
