package cmd

import (
	"github.com/slipway-build/slipway/internal/config"
	"github.com/slipway-build/slipway/internal/errors"
	"github.com/slipway-build/slipway/internal/lifecycle"
	"github.com/slipway-build/slipway/internal/project"
	"github.com/slipway-build/slipway/internal/provider"
	"github.com/slipway-build/slipway/internal/session"
)

// loadConfig reads the config file named by --config, or the default
// location.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindValidation, "loading config", err)
	}
	return cfg, nil
}

// openStore opens the project store under the configured state directory.
func openStore(cfg *config.Config) (project.Store, error) {
	paths := config.DefaultPaths(cfg.StateDir)
	store, err := project.NewFileStore(paths.ProjectsDir)
	if err != nil {
		return nil, errors.Wrap(errors.KindValidation, "opening project store", err)
	}
	return store, nil
}

// newManager wires a lifecycle manager from the config file. Each process
// starts with a fresh session: recorded sandboxes from earlier processes
// are reconciled, not blindly trusted.
func newManager() (*lifecycle.Manager, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	client, err := provider.NewRESTClient(provider.RESTConfig{
		APIURL:   cfg.Provider.APIURL,
		APIKey:   cfg.Provider.APIKey,
		Template: cfg.Provider.Template,
	})
	if err != nil {
		return nil, nil, errors.Wrap(errors.KindValidation, "configuring provider", err)
	}

	return lifecycle.NewManager(store, client, session.New(), cfg), cfg, nil
}
