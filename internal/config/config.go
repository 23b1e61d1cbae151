package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/viper"
)

// Hosting client modes.
const (
	HostingAuto = "auto"
	HostingAPI  = "api"
	HostingCLI  = "cli"
)

type Config struct {
	GithubToken    string        `mapstructure:"github_token"`
	GithubOwner    string        `mapstructure:"github_owner"`
	GithubRepo     string        `mapstructure:"github_repo"`
	BaseBranch     string        `mapstructure:"base_branch"`
	ManifestPath   string        `mapstructure:"manifest_path"`
	ChangelogPath  string        `mapstructure:"changelog_path"`
	ScratchDir     string        `mapstructure:"scratch_dir"`
	Hosting        string        `mapstructure:"hosting"`
	Debug          bool          `mapstructure:"debug"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	SettleAttempts int           `mapstructure:"settle_attempts"`
	RetryCount     uint64        `mapstructure:"retry_count"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		BaseBranch:     "main",
		ManifestPath:   "manifest.json",
		ChangelogPath:  "CHANGELOG.md",
		ScratchDir:     filepath.Join(os.TempDir(), "autorelease"),
		Hosting:        HostingAuto,
		PollInterval:   15 * time.Second,
		MaxWait:        30 * time.Minute,
		SettleDelay:    5 * time.Second,
		SettleAttempts: 3,
		RetryCount:     3,
		RetryDelay:     time.Second,
		CommandTimeout: 2 * time.Minute,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// GitHub token is optional - only validate if provided
	if c.GithubToken != "" {
		if err := ValidateGitHubToken(c.GithubToken); err != nil {
			return fmt.Errorf("invalid github_token: %w", err)
		}
	}
	if c.GithubOwner != "" || c.GithubRepo != "" {
		if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
			return fmt.Errorf("invalid github configuration: %w", err)
		}
	}
	switch c.Hosting {
	case HostingAuto, HostingCLI:
	case HostingAPI:
		if c.GithubToken == "" {
			return fmt.Errorf("hosting mode %q requires github_token", HostingAPI)
		}
	default:
		return fmt.Errorf("invalid hosting mode %q: expected auto, api or cli", c.Hosting)
	}
	if c.BaseBranch == "" {
		return fmt.Errorf("base_branch cannot be empty")
	}
	if c.ScratchDir == "" {
		return fmt.Errorf("scratch_dir cannot be empty")
	}
	if strings.Contains(c.ManifestPath, "..") || strings.Contains(c.ChangelogPath, "..") {
		return fmt.Errorf("manifest_path and changelog_path must not contain path traversal")
	}
	if c.PollInterval <= 0 || c.MaxWait <= 0 {
		return fmt.Errorf("poll_interval and max_wait must be positive")
	}
	if c.SettleDelay < 0 || c.SettleAttempts < 1 {
		return fmt.Errorf("settle_delay must not be negative and settle_attempts must be at least 1")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive")
	}
	return nil
}

// ValidateForGitHubOperations validates that GitHub API access is fully configured
func (c *Config) ValidateForGitHubOperations() error {
	if c.GithubToken == "" {
		return fmt.Errorf("github_token is required for GitHub API operations")
	}
	if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
		return fmt.Errorf("github repository could not be determined: %w", err)
	}
	return c.Validate()
}

// UseAPI reports whether the hosting client should talk to the REST API instead of the gh CLI.
func (c *Config) UseAPI() bool {
	switch c.Hosting {
	case HostingAPI:
		return true
	case HostingCLI:
		return false
	default:
		return c.GithubToken != ""
	}
}

// RepositorySlug returns owner/repo, or an empty string if either part is unknown.
func (c *Config) RepositorySlug() string {
	if c.GithubOwner == "" || c.GithubRepo == "" {
		return ""
	}
	return c.GithubOwner + "/" + c.GithubRepo
}

// ValidateGitHubToken validates GitHub token format (exported for reuse)
func ValidateGitHubToken(token string) error {
	token = strings.TrimSpace(token)
	if len(token) < 40 {
		return fmt.Errorf("token too short: expected at least 40 characters")
	}
	// Validate token format patterns
	classicPAT := regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	fineGrainedPAT := regexp.MustCompile(`^github_pat_[a-zA-Z0-9_]{82}$`)
	appToken := regexp.MustCompile(`^ghs_[a-zA-Z0-9]{36}$`)
	oauthToken := regexp.MustCompile(`^gho_[a-zA-Z0-9]{36}$`)
	if !classicPAT.MatchString(token) &&
		!fineGrainedPAT.MatchString(token) &&
		!appToken.MatchString(token) &&
		!oauthToken.MatchString(token) {
		return fmt.Errorf("invalid token format")
	}
	return nil
}

// ValidateGitHubOwnerRepo validates GitHub owner and repository names (exported for reuse)
func ValidateGitHubOwnerRepo(owner, repo string) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}
	if repo == "" {
		return fmt.Errorf("repository cannot be empty")
	}
	validName := regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_.]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)
	if !validName.MatchString(owner) {
		return fmt.Errorf("invalid owner format: %s", owner)
	}
	if len(owner) > 39 {
		return fmt.Errorf("owner too long: maximum 39 characters")
	}
	if !validName.MatchString(repo) {
		return fmt.Errorf("invalid repository format: %s", repo)
	}
	if len(repo) > 100 {
		return fmt.Errorf("repository too long: maximum 100 characters")
	}
	return nil
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".autorelease")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	// Configure environment variables
	viper.SetEnvPrefix("AUTORELEASE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// BindEnv allows multiple env vars - it will check them in order
	bindings := map[string][]string{
		"github_token": {"AUTORELEASE_GITHUB_TOKEN", "GITHUB_TOKEN", "GH_TOKEN"},
		"github_owner": {"AUTORELEASE_GITHUB_OWNER", "GITHUB_OWNER"},
		"github_repo":  {"AUTORELEASE_GITHUB_REPO", "GITHUB_REPO"},
		"base_branch":  {"AUTORELEASE_BASE_BRANCH", "BASE_BRANCH"},
		"debug":        {"AUTORELEASE_DEBUG", "DEBUG"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := viper.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s env: %w", key, err)
		}
	}
	setDefaults(DefaultConfig())
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := populateRepositoryDefaults(&config); err != nil {
		return nil, fmt.Errorf("failed to determine repository: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func setDefaults(defaults *Config) {
	viper.SetDefault("base_branch", defaults.BaseBranch)
	viper.SetDefault("manifest_path", defaults.ManifestPath)
	viper.SetDefault("changelog_path", defaults.ChangelogPath)
	viper.SetDefault("scratch_dir", defaults.ScratchDir)
	viper.SetDefault("hosting", defaults.Hosting)
	viper.SetDefault("debug", defaults.Debug)
	viper.SetDefault("poll_interval", defaults.PollInterval)
	viper.SetDefault("max_wait", defaults.MaxWait)
	viper.SetDefault("settle_delay", defaults.SettleDelay)
	viper.SetDefault("settle_attempts", defaults.SettleAttempts)
	viper.SetDefault("retry_count", defaults.RetryCount)
	viper.SetDefault("retry_delay", defaults.RetryDelay)
	viper.SetDefault("command_timeout", defaults.CommandTimeout)
}

// populateRepositoryDefaults fills owner and repo from the Actions environment,
// then from the origin remote of the working copy.
func populateRepositoryDefaults(cfg *Config) error {
	if cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		return nil
	}
	if slug := strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY")); slug != "" {
		if owner, repo, ok := strings.Cut(slug, "/"); ok && owner != "" && repo != "" {
			fillMissing(cfg, owner, repo)
			return nil
		}
	}
	fillMissing(cfg, os.Getenv("GITHUB_REPOSITORY_OWNER"), os.Getenv("GITHUB_REPOSITORY_NAME"))
	if cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		return nil
	}
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil
		}
		return fmt.Errorf("failed to open git repository: %w", err)
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read origin remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return nil
	}
	owner, name, err := parseGitRemoteURL(urls[0])
	if err != nil {
		return err
	}
	fillMissing(cfg, owner, name)
	return nil
}

func fillMissing(cfg *Config, owner, repo string) {
	if cfg.GithubOwner == "" {
		cfg.GithubOwner = strings.TrimSpace(owner)
	}
	if cfg.GithubRepo == "" {
		cfg.GithubRepo = strings.TrimSpace(repo)
	}
}

var scpLikeURL = regexp.MustCompile(`^[^@/]+@[^:/]+:(.+)$`)

// parseGitRemoteURL extracts owner and repository from https, ssh and file remotes.
func parseGitRemoteURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	path := raw
	switch {
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", "", fmt.Errorf("invalid remote url %q: %w", raw, err)
		}
		path = u.Path
	case scpLikeURL.MatchString(raw):
		path = scpLikeURL.FindStringSubmatch(raw)[1]
	}
	path = strings.TrimSuffix(filepath.ToSlash(path), "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("cannot determine owner/repo from remote %q", raw)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
