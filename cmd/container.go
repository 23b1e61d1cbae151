package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/compozy/autorelease/internal/config"
	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/logger"
	"github.com/compozy/autorelease/internal/orchestrator"
	"github.com/compozy/autorelease/internal/repository"
	"github.com/compozy/autorelease/internal/service"
	"go.uber.org/zap"
)

// container holds all the dependencies for the application.
type container struct {
	cfg  *config.Config
	log  *zap.Logger
	root string

	fsRepo      repository.FileSystemRepository
	gitRepo     repository.GitRepository
	hostingRepo repository.HostingRepository
	versions    repository.VersionSource
}

// newContainer loads the configuration and wires the repositories for the working copy.
func newContainer(debug bool) (*container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
	}
	if debug {
		cfg.Debug = true
	}
	log, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, err
	}
	root, err := repository.WorktreeRoot(".")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
	}
	runner := service.NewCommandRunner(root, cfg.CommandTimeout, log)
	fsRepo := repository.NewOsFileSystem()
	gitRepo, err := repository.NewGitRepository(root, cfg.GithubToken, runner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
	}
	// The REST client is used when a token is available, otherwise the gh CLI
	var hostingRepo repository.HostingRepository
	if cfg.UseAPI() {
		if err := cfg.ValidateForGitHubOperations(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
		}
		hostingRepo, err = repository.NewGithubRepository(cfg.GithubToken, cfg.GithubOwner, cfg.GithubRepo, fsRepo, log)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to initialize GitHub client: %w", domain.ErrPrerequisite, err)
		}
	} else {
		hostingRepo = repository.NewGhCLIRepository(runner, cfg.RepositorySlug())
	}
	log.Debug("container initialized",
		zap.String("root", root),
		zap.Bool("api", cfg.UseAPI()),
		zap.String("repository", cfg.RepositorySlug()),
	)
	return &container{
		cfg:         cfg,
		log:         log,
		root:        root,
		fsRepo:      fsRepo,
		gitRepo:     gitRepo,
		hostingRepo: hostingRepo,
		versions:    repository.NewManifestVersionSource(fsRepo, resolvePath(root, cfg.ManifestPath)),
	}, nil
}

// releaseConfig maps the loaded configuration onto the orchestrator settings.
func (c *container) releaseConfig(ciOutput bool) orchestrator.Config {
	return orchestrator.Config{
		BaseBranch:     c.cfg.BaseBranch,
		ChangelogPath:  resolvePath(c.root, c.cfg.ChangelogPath),
		ScratchDir:     scratchDirFor(c.cfg.ScratchDir, c.root),
		PollInterval:   c.cfg.PollInterval,
		MaxWait:        c.cfg.MaxWait,
		SettleDelay:    c.cfg.SettleDelay,
		SettleAttempts: c.cfg.SettleAttempts,
		RetryCount:     c.cfg.RetryCount,
		RetryDelay:     c.cfg.RetryDelay,
		CIOutput:       ciOutput,
	}
}

func (c *container) statusOrchestrator() *orchestrator.StatusOrchestrator {
	return orchestrator.NewStatusOrchestrator(c.gitRepo, c.hostingRepo, c.versions, c.cfg.BaseBranch)
}

// scratchDirFor keys the scratch directory on the working copy so the run
// lock and notes files are shared only by runs of the same repository.
func scratchDirFor(base, root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(base, hex.EncodeToString(sum[:])[:12])
}

func resolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
