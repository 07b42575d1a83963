package main

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lingua-lens/lens/internal/client"
	"github.com/lingua-lens/lens/internal/config"
	"github.com/lingua-lens/lens/internal/logging"
	"github.com/lingua-lens/lens/internal/settings"
)

type commandContext struct {
	configFlag *string
	addrFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
	loggerErr  error
}

func newCommandContext(configFlag, addrFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		addrFlag:   addrFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := config.DefaultPath()
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*zap.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(cfg.Logging)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) hostAddr() string {
	if c.addrFlag != nil && strings.TrimSpace(*c.addrFlag) != "" {
		return strings.TrimSpace(*c.addrFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.Server.Addr
	}
	return config.Default().Server.Addr
}

func (c *commandContext) client() *client.Client {
	return client.New(c.hostAddr())
}

func (c *commandContext) withSettings(fn func(*settings.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := settings.Open(cfg.Paths.SettingsDB)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
