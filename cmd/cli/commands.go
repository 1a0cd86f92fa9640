package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wadjakorntonsri/go-linkpage/pkg/adapters/cache"
	"github.com/wadjakorntonsri/go-linkpage/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-linkpage/pkg/config"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/services"
	"github.com/wadjakorntonsri/go-linkpage/pkg/logging"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

// env is what every subcommand needs; opened lazily so --help works offline
type env struct {
	repo        *sqlite.SQLiteRepository
	invalidator ports.CacheInvalidator
	logger      *logrus.Logger
	close       func()
}

type opener func(cmd *cobra.Command) (*env, error)

func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.IsProduction())

	dbURL, _ := cmd.Flags().GetString("database-url")
	if dbURL == "" {
		dbURL = cfg.DatabaseURL
	}
	repo, err := sqlite.NewSQLiteRepository(dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to db")
	}

	e := &env{repo: repo, invalidator: cache.NopCache{}, logger: logger}
	e.close = func() { _ = repo.Close() }
	if cfg.RedisURL != "" {
		c, err := cache.NewRedisProfileCache(cfg.RedisURL, cfg.ProfileCacheTTL)
		if err != nil {
			logger.WithError(err).Warn("profile cache unavailable, skipping invalidation")
		} else {
			e.invalidator = c
			e.close = func() { _ = c.Close(); _ = repo.Close() }
		}
	}
	return e, nil
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(openEnv)
}

func newRootCmdWith(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "linkpage",
		Short:         "Maintenance commands for the linkpage database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("database-url", "", "database URL, defaults to DATABASE_URL")

	root.AddCommand(newExportCmd(open), newImportCmd(open), newRekeyCmd(open))
	return root
}

func newExportCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write every link as JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			links, err := e.repo.Dump(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "export")
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(links)
		},
	}
}

func newImportCmd(open opener) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create links from an export file, appending to each owner's list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return errors.Wrap(err, "open file")
				}
				defer f.Close()
				r = f
			}

			var links []domain.Link
			if err := json.NewDecoder(r).Decode(&links); err != nil {
				return errors.Wrap(err, "decode links")
			}

			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			count, err := services.NewMaintenance(e.repo, e.invalidator, e.logger).Import(cmd.Context(), links)
			if err != nil {
				return err
			}
			e.logger.WithField("count", count).Info("imported links")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file to import, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRekeyCmd(open opener) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "rekey",
		Short: "Rewrite an owner's order keys to short evenly spaced keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			count, err := services.NewMaintenance(e.repo, e.invalidator, e.logger).Rekey(cmd.Context(), owner)
			if err != nil {
				return err
			}
			e.logger.WithFields(logrus.Fields{"owner": owner, "count": count}).Info("rekeyed links")
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner e-mail whose links are rekeyed")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
