package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mapsjob/internal/adapters/backend"
	"mapsjob/internal/adapters/downloader"
	"mapsjob/internal/adapters/localstorage"
	"mapsjob/internal/config"
	"mapsjob/internal/logging"
	"mapsjob/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the wired components shared by all subcommands.
type app struct {
	cfg        config.Config
	logger     *logrus.Logger
	backend    backend.Service
	catalog    *service.LocationCatalog
	controller *service.Controller
	exporter   *service.ExportService
}

type rootOptions struct {
	configFile string
	baseURL    string
	protocol   string
	dataDir    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "mapsjob",
		Short:         "Submit and track Google Maps extraction jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (yaml, json or toml)")
	flags.StringVar(&opts.baseURL, "base-url", "", "backend base URL (overrides config)")
	flags.StringVar(&opts.protocol, "protocol", "", "backend protocol: classic or api (overrides config)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory for job records and exports (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(
		newSearchCmd(a),
		newCountriesCmd(a),
		newCitiesCmd(a),
		newStatusCmd(a),
	)
	return rootCmd
}

func (a *app) init(opts *rootOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		cfg.Backend.BaseURL = opts.baseURL
	}
	if opts.protocol != "" {
		cfg.Backend.Protocol = config.Protocol(opts.protocol)
	}
	if opts.dataDir != "" {
		cfg.Export.Dir = opts.dataDir
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	svc, err := backend.New(cfg.Backend, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize backend client: %w", err)
	}
	storage := localstorage.NewLocalStorage(cfg.Export.Dir)

	a.cfg = cfg
	a.logger = logger
	a.backend = svc
	a.catalog = service.NewLocationCatalog(svc)
	a.controller = service.NewController(svc, storage, cfg.Poll, logger)
	a.exporter = service.NewExportService(svc, downloader.NewHTTPDownloader(cfg.Backend.Timeout), storage, logger)

	logger.WithFields(logrus.Fields{
		"backend":  cfg.Backend.BaseURL,
		"protocol": cfg.Backend.Protocol,
		"data_dir": cfg.Export.Dir,
	}).Debug("configuration loaded")
	return nil
}
