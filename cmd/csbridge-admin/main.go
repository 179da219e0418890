package main

import (
	"fmt"
	"io"
	"os"

	"csbridge/internal/config"
	"csbridge/internal/database"
	"csbridge/internal/models"
	"csbridge/internal/timestamps"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool
	logger     *logrus.Logger
}

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	a := &app{logger: logrus.New()}
	a.logger.SetFormatter(&logrus.JSONFormatter{})
	a.logger.SetOutput(logOut)

	root := &cobra.Command{
		Use:          "csbridge-admin",
		Short:        "Maintenance commands for the csbridge support bridge",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.verbose {
				a.logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.json", "path to the csbridge configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.backfillCmd())
	root.AddCommand(a.exclusionsCmd())
	root.AddCommand(a.groupsCmd())
	root.AddCommand(a.migrateCmd())
	root.AddCommand(hashPasswordCmd())
	return root
}

func (a *app) loadConfig() (*models.Config, error) {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", a.configPath, err)
	}
	return cfg, nil
}

func (a *app) openDatabase(cfg *models.Config) (*database.Database, error) {
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return db, nil
}

func zoneOf(cfg *models.Config) timestamps.Zone {
	return timestamps.NewZone(cfg.Timezone.Name, cfg.Timezone.OffsetHours)
}
