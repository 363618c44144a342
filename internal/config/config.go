package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SupportedVersions are the host major versions bindings can be generated for.
var SupportedVersions = []int{10, 11, 12, 13, 14}

// Config is the pgxgen.yaml configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	// Versions to introspect and synthesize.
	Versions []int `mapstructure:"versions"`
	// Platform in GOOS/GOARCH form.
	Platform string `mapstructure:"platform"`

	Allowlist   string `mapstructure:"allowlist"`
	Corrections string `mapstructure:"corrections"`

	// IncludeDirs maps a major version to its server include directories.
	// Versions without an entry use IncludeTemplate with {version}
	// substituted.
	IncludeDirs     map[string][]string `mapstructure:"include_dirs"`
	IncludeTemplate string              `mapstructure:"include_template"`

	OutputDir   string `mapstructure:"output_dir"`
	CacheDir    string `mapstructure:"cache_dir"`
	Parallelism int    `mapstructure:"parallelism"`

	ExtensionPaths []string    `mapstructure:"extension_paths"`
	Wasm           WasmConfig  `mapstructure:"wasm"`
	Probe          ProbeConfig `mapstructure:"probe"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Guest call timeout (seconds).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
}

// Timeout returns ExecutionTimeout as a duration.
func (w WasmConfig) Timeout() time.Duration {
	return time.Duration(w.ExecutionTimeout) * time.Second
}

// ProbeConfig configures the live host check.
type ProbeConfig struct {
	DSN     string `mapstructure:"dsn"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// Load reads configPath, if given, over the defaults. PGXGEN_ prefixed
// environment variables override both, with "." in keys written as "_"
// (PGXGEN_WASM_MEMORY_PAGES).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("versions", SupportedVersions)
	v.SetDefault("platform", "linux/amd64")
	v.SetDefault("allowlist", "./allowlist.yaml")
	v.SetDefault("corrections", "./corrections.yaml")
	v.SetDefault("include_template", "/usr/include/postgresql/{version}/server")
	v.SetDefault("output_dir", "./pkg/pgsys")
	v.SetDefault("cache_dir", "./build/pgxgen-cache")
	v.SetDefault("parallelism", 4)
	v.SetDefault("extension_paths", []string{"./extensions"})

	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 5)

	v.SetDefault("probe.dsn", "")
	v.SetDefault("probe.timeout", 10)

	v.SetEnvPrefix("PGXGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields Load cannot default.
func (c *Config) Validate() error {
	if len(c.Versions) == 0 {
		return fmt.Errorf("versions: at least one host version is required")
	}
	seen := make(map[int]bool)
	for _, ver := range c.Versions {
		if !supported(ver) {
			return fmt.Errorf("versions: unsupported host version %d (supported: %v)", ver, SupportedVersions)
		}
		if seen[ver] {
			return fmt.Errorf("versions: %d listed twice", ver)
		}
		seen[ver] = true
	}
	for key := range c.IncludeDirs {
		ver, err := strconv.Atoi(key)
		if err != nil || !supported(ver) {
			return fmt.Errorf("include_dirs: %q is not a supported host version", key)
		}
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	if c.Wasm.ExecutionTimeout < 0 {
		return fmt.Errorf("wasm.execution_timeout must not be negative")
	}
	return nil
}

// VersionIncludeDirs returns the include directories for one version.
func (c *Config) VersionIncludeDirs(version int) []string {
	if dirs, ok := c.IncludeDirs[strconv.Itoa(version)]; ok && len(dirs) > 0 {
		return dirs
	}
	if c.IncludeTemplate == "" {
		return nil
	}
	return []string{strings.ReplaceAll(c.IncludeTemplate, "{version}", strconv.Itoa(version))}
}

func supported(version int) bool {
	for _, v := range SupportedVersions {
		if v == version {
			return true
		}
	}
	return false
}
