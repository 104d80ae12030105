package main

import (
	"fmt"

	"github.com/go-scripts/profileharvest/internal/config"
	"github.com/go-scripts/profileharvest/internal/session"
)

// LoginCmd stores the credentials used for interactive login.
type LoginCmd struct {
	Email    string `help:"Account e-mail" required:""`
	Password string `help:"Account password" required:""`
}

func (c *LoginCmd) Run(g *Globals) error {
	cfg, logger, err := g.setup()
	if err != nil {
		return err
	}
	creds := config.Credentials{Identity: c.Email, Passphrase: c.Password}
	if err := config.SaveCredentials(cfg.Paths.EnvFile, creds); err != nil {
		return err
	}
	logger.Info("credentials saved", "file", cfg.Paths.EnvFile)
	fmt.Fprintf(stdout, "Credentials saved to %s\n", cfg.Paths.EnvFile)
	return nil
}

// ForgetCmd removes the cached session so the next search logs in again.
type ForgetCmd struct{}

func (c *ForgetCmd) Run(g *Globals) error {
	cfg, logger, err := g.setup()
	if err != nil {
		return err
	}
	cache := session.NewCache(cfg.CookieFile())
	if !cache.Exists() {
		fmt.Fprintln(stdout, "No cached session")
		return nil
	}
	if err := cache.Remove(); err != nil {
		return fmt.Errorf("removing %s: %w", cache.Path(), err)
	}
	logger.Info("cached session removed", "file", cache.Path())
	fmt.Fprintf(stdout, "Removed %s\n", cache.Path())
	return nil
}
