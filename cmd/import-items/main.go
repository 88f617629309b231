package main

import (
	"fmt"
	"os"

	"giftlist/internal/catalog"
	"giftlist/internal/config"
	"giftlist/internal/database"
	"giftlist/internal/logger"
	"giftlist/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	migrationsDir string
	skipMigrate   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "import-items <file.json>",
		Short: "Load store items from a JSON document",
		Long:  `Apply pending migrations, then insert every item of a JSON array into the catalog. Items that already exist or fail validation are skipped.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	rootCmd.PersistentFlags().StringVarP(&migrationsDir, "migrations", "m", "migrations", "Directory holding the goose migrations")
	rootCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply pending migrations before loading")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	log := logger.NewWithDefaults()
	defer log.Sync()

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer file.Close()

	db, err := database.New(config.Load().Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if !skipMigrate {
		if err := database.RunMigrationsContext(cmd.Context(), db.DB(), migrationsDir, log); err != nil {
			return err
		}
	}

	loader := catalog.NewLoader(repository.NewItemRepository(db.DB()), logger.Component(log, "catalog"))
	result, err := loader.LoadFile(cmd.Context(), file)
	if err != nil {
		log.Error("Import aborted", zap.Int("loaded", result.Loaded), zap.Error(err))
		return err
	}

	log.Info("Import finished",
		zap.String("file", args[0]),
		zap.Int("loaded", result.Loaded),
		zap.Int("skipped", result.Skipped),
	)
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	db, err := database.New(config.Load().Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return database.GetMigrationStatus(db.DB(), migrationsDir)
}
