package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
)

// Config is the shipwright project configuration (shipwright.yaml).
type Config struct {
	Project      ProjectConfig     `yaml:"project"`
	Platform     Platform          `yaml:"platform"`
	Toolchain    ToolchainConfig   `yaml:"toolchain"`
	Docs         DocsConfig        `yaml:"docs"`
	Metadata     Metadata          `yaml:"metadata"`
	Repositories []Repository      `yaml:"repositories"`
	Release      ReleaseConfig     `yaml:"release"`
	Build        BuildConfig       `yaml:"build"`
	Monitoring   MonitoringConfig  `yaml:"monitoring,omitempty"`
	State        StateConfig       `yaml:"state,omitempty"`
	Notify       NotifyConfig      `yaml:"notify,omitempty"`
	Schedule     ScheduleConfig    `yaml:"schedule,omitempty"`
	Watch        WatchConfig       `yaml:"watch,omitempty"`
	Properties   map[string]string `yaml:"properties,omitempty"`

	// baseDir is the directory holding the config file; relative paths resolve against it.
	baseDir string
}

// ProjectConfig describes the multi-module project layout.
type ProjectConfig struct {
	Name    string   `yaml:"name"`
	Group   string   `yaml:"group"`
	Version string   `yaml:"version"`
	Root    string   `yaml:"root,omitempty"`
	Modules []string `yaml:"modules,omitempty"` // explicit module directories; empty means scan Root
	Output  string   `yaml:"output,omitempty"`  // project-level output (aggregate docs, artifact store)
}

// Platform holds the platform key-values applied by library profiles.
type Platform struct {
	AndroidVersion    string   `yaml:"android_version,omitempty"`
	AndroidMinVersion int      `yaml:"android_min_version,omitempty"`
	BuildToolsVersion string   `yaml:"build_tools_version,omitempty"`
	JavaCompatibility string   `yaml:"java_compatibility,omitempty"`
	SDKDir            string   `yaml:"sdk_dir,omitempty"`
	BootClasspath     []string `yaml:"boot_classpath,omitempty"`
	ReferenceDocsURL  string   `yaml:"reference_docs_url,omitempty"`
}

// CommandConfig describes an external tool invocation. Args are text/template strings.
type CommandConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// CompilerConfig is the compiler command plus where it leaves its results.
// Both paths are templates over the module and its settings.
type CompilerConfig struct {
	CommandConfig `yaml:",inline"`
	Output        string `yaml:"output,omitempty"`
	ClasspathFile string `yaml:"classpath_file,omitempty"`
}

// ToolchainConfig configures the external compiler and documentation generator.
type ToolchainConfig struct {
	Compiler     CompilerConfig `yaml:"compiler"`
	DocGenerator CommandConfig  `yaml:"doc_generator"`
	Timeout      time.Duration  `yaml:"timeout,omitempty"`
}

// DocsConfig controls documentation inputs and the aggregate.
type DocsConfig struct {
	Title             string   `yaml:"title,omitempty"`
	SourceExtensions  []string `yaml:"source_extensions,omitempty"`
	ExcludeExtensions []string `yaml:"exclude_extensions,omitempty"`
	// GeneratedDirs are relative to each module's output directory.
	GeneratedDirs []string `yaml:"generated_dirs,omitempty"`
	Overview      string   `yaml:"overview,omitempty"` // per-module README file name
}

// Metadata is the descriptive publication metadata (POM).
type Metadata struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	URL         string      `yaml:"url,omitempty"`
	SCM         SCM         `yaml:"scm,omitempty"`
	License     License     `yaml:"license,omitempty"`
	Developers  []Developer `yaml:"developers,omitempty"`
}

type SCM struct {
	Connection          string `yaml:"connection,omitempty"`
	DeveloperConnection string `yaml:"developer_connection,omitempty"`
	URL                 string `yaml:"url,omitempty"`
}

type License struct {
	Name         string `yaml:"name,omitempty"`
	URL          string `yaml:"url,omitempty"`
	Distribution string `yaml:"distribution,omitempty"`
}

type Developer struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Repository is a publication target. Credentials is an opaque reference
// resolved at submit time; it never holds the secret itself.
type Repository struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Credentials string `yaml:"credentials,omitempty"`
}

// Release version strategies.
const (
	StrategyUnsnapshot   = "unsnapshot"
	StrategyPatch        = "patch"
	StrategyMinor        = "minor"
	StrategyMajor        = "major"
	StrategyConventional = "conventional"
)

// ReleaseConfig gates and names a release.
type ReleaseConfig struct {
	TagTemplate     string `yaml:"tag_template,omitempty"`
	TagMessage      string `yaml:"tag_message,omitempty"`
	RequireBranch   string `yaml:"require_branch,omitempty"`
	PushToRemote    string `yaml:"push_to_remote,omitempty"`
	VersionStrategy string `yaml:"version_strategy,omitempty"`
	// Auth is used for pushing the tag; empty uses the transport defaults.
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// BuildConfig tunes step execution and caller-level publish retries.
type BuildConfig struct {
	Concurrency       int           `yaml:"concurrency,omitempty"`
	RetryBackoff      string        `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay,omitempty"`
	MaxRetries        int           `yaml:"max_retries,omitempty"`
}

type MonitoringConfig struct {
	MetricsTextfile string `yaml:"metrics_textfile,omitempty"`
}

type StateConfig struct {
	HistoryDB string `yaml:"history_db,omitempty"`
}

type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

type ScheduleConfig struct {
	Snapshot string `yaml:"snapshot,omitempty"` // cron expression for snapshot publishing
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ferrors.ConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").Fatal().Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to resolve config directory").Fatal().Build()
	}
	cfg.baseDir = abs
	return cfg, nil
}

// Parse decodes raw YAML, expanding environment variables and applying defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BaseDir returns the directory relative paths are resolved against.
func (c *Config) BaseDir() string {
	if c.baseDir == "" {
		return "."
	}
	return c.baseDir
}

// SetBaseDir overrides the directory relative paths are resolved against.
func (c *Config) SetBaseDir(dir string) {
	c.baseDir = dir
}

// ResolvePath resolves p against the config directory unless it is absolute.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir(), p)
}

// ProjectRoot is the absolute-ish root that holds module directories.
func (c *Config) ProjectRoot() string {
	return c.ResolvePath(c.Project.Root)
}

// OutputDir is the project-level output directory.
func (c *Config) OutputDir() string {
	return c.ResolvePath(c.Project.Output)
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Example()
	data, err := yaml.Marshal(&example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.FileSystemError("failed to write config file").WithCause(err).Build()
	}
	return nil
}

// Example returns the configuration written by Init.
func Example() Config {
	return Config{
		Project: ProjectConfig{
			Name:    "acra",
			Group:   "ch.acra",
			Version: "5.7.1-SNAPSHOT",
			Root:    ".",
			Output:  "build",
		},
		Platform: Platform{
			AndroidVersion:    "29",
			AndroidMinVersion: 14,
			BuildToolsVersion: "29.0.3",
			JavaCompatibility: "1.8",
			SDKDir:            "${ANDROID_HOME}",
			ReferenceDocsURL:  "http://d.android.com/reference",
		},
		Toolchain: ToolchainConfig{
			Compiler: CompilerConfig{
				CommandConfig: CommandConfig{
					Command: "./gradlew",
					Args:    []string{":{{ .Module.Name }}:assembleRelease"},
				},
				ClasspathFile: "{{ .Module.OutputDir }}/compile-classpath.txt",
			},
			DocGenerator: CommandConfig{
				Command: "javadoc",
				Args: []string{
					"-d", "{{ .OutputDir }}",
					"-doctitle", "{{ .Title }}",
					"{{ if .Classpath }}-classpath\n{{ join .Classpath \":\" }}{{ end }}",
					"{{ range .Links }}-linkoffline\n{{ .URL }}\n{{ .PackageList }}\n{{ end }}",
					"{{ if .Overview }}-overview\n{{ .Overview }}{{ end }}",
					"{{ lines .Sources }}",
				},
			},
			Timeout: 10 * time.Minute,
		},
		Metadata: Metadata{
			Name:        "ACRA",
			Description: "Publishes reports of Android application crashes to an end point.",
			URL:         "http://acra.ch",
			SCM: SCM{
				Connection:          "scm:git:https://github.com/F43nd1r/acra.git",
				DeveloperConnection: "scm:git:git@github.com:F43nd1r/acra.git",
				URL:                 "https://github.com/F43nd1r/acra.git",
			},
			License: License{
				Name:         "Apache-2.0",
				URL:          "http://www.apache.org/licenses/LICENSE-2.0.txt",
				Distribution: "repo",
			},
			Developers: []Developer{
				{ID: "kevin.gaudin", Name: "Kevin Gaudin"},
				{ID: "william.ferguson", Name: "William Ferguson"},
				{ID: "f43nd1r", Name: "Lukas Morawietz"},
			},
		},
		Repositories: []Repository{
			{Name: "mavenLocal", URL: "local"},
			{Name: "bintray", URL: "https://api.bintray.com/maven/acra/maven/ACRA/;publish=1", Credentials: "BINTRAY"},
		},
		Release: ReleaseConfig{
			TagTemplate:     "acra-{{ .Version }}",
			RequireBranch:   "master",
			PushToRemote:    "ACRA",
			VersionStrategy: StrategyUnsnapshot,
		},
		Build: BuildConfig{
			Concurrency:  4,
			RetryBackoff: string(RetryBackoffLinear),
			MaxRetries:   2,
		},
	}
}
