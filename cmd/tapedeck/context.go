package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tapedeck/internal/config"
	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/project"
)

type commandContext struct {
	configFlag  *string
	projectFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, projectFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		projectFlag: projectFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// cliLogger writes to the global log file only so command output stays clean.
// serve builds its own stdout logger.
func (c *commandContext) cliLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		c.logger = logging.NewNop()
		cfg, err := c.ensureConfig()
		if err != nil || cfg.Paths.DataDir == "" {
			return
		}
		logger, err := logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      "json",
			OutputPaths: []string{filepath.Join(cfg.LogDir(), logging.LogFileName)},
		})
		if err == nil {
			c.logger = logger
		}
	})
	return c.logger
}

func (c *commandContext) projectSlug() (string, error) {
	if c.projectFlag != nil {
		if slug := strings.TrimSpace(*c.projectFlag); slug != "" {
			return slug, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if cfg.Paths.DefaultProject == "" {
		return "", errors.New("no project selected; pass --project or set paths.default_project")
	}
	return cfg.Paths.DefaultProject, nil
}

func (c *commandContext) openProject(ctx context.Context, logger *slog.Logger) (*project.Project, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	slug, err := c.projectSlug()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = c.cliLogger()
	}
	return project.Open(ctx, cfg, slug, logger)
}

// withProject opens the selected project for the duration of fn.
func (c *commandContext) withProject(cmd *cobra.Command, fn func(context.Context, *project.Project) error) error {
	p, err := c.openProject(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer p.Close()
	return fn(p.Context(cmd.Context()), p)
}

// withExclusiveProject additionally takes the project lock so foreground
// pipelines never write the same directories as a running daemon.
func (c *commandContext) withExclusiveProject(cmd *cobra.Command, fn func(context.Context, *project.Project) error) error {
	return c.withProject(cmd, func(ctx context.Context, p *project.Project) error {
		if err := p.Lock(); err != nil {
			if errors.Is(err, project.ErrLocked) {
				return fmt.Errorf("project %s is served by a running daemon; submit the job through its API at %s", p.Paths.Slug, p.Config.Paths.APIBind)
			}
			return err
		}
		return fn(ctx, p)
	})
}

// withSession runs fn in one committed session on the selected project.
func (c *commandContext) withSession(cmd *cobra.Command, exclusive bool, fn func(context.Context, *project.Project, *library.Session) error) error {
	run := func(ctx context.Context, p *project.Project) error {
		return p.WithSession(ctx, func(sess *library.Session) error {
			return fn(ctx, p, sess)
		})
	}
	if exclusive {
		return c.withExclusiveProject(cmd, run)
	}
	return c.withProject(cmd, run)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
