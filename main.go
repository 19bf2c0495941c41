package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neurodash/internal/api"
	"neurodash/internal/config"
	"neurodash/internal/database"
	"neurodash/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "neurodash",
		Short: "NeuroDashboard backend",
		// serve is the default command.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and opens the database. Existing databases
// are upgraded only when migrate is set or NEURODASH_RUN_MIGRATIONS is true.
func setup(migrate bool) (*config.Config, zerolog.Logger, *sql.DB, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("config: %w", err)
	}
	log := logger.New("neurodash", logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Pretty: cfg.LogPretty})
	migrate = migrate || cfg.RunMigrations

	if migrate {
		log.Info().Msg("Running database migrations...")
	} else {
		log.Info().Msg("Migrations skipped (set NEURODASH_RUN_MIGRATIONS=true or run `neurodash migrate`)")
	}
	db, err := database.Initialize(database.Options{
		Driver:        cfg.DBDriver,
		Path:          cfg.DBPath,
		EncryptionKey: cfg.DBEncryptionKey,
		Migrate:       migrate,
	})
	if err != nil {
		return nil, log, nil, fmt.Errorf("initialize database: %w", err)
	}
	return cfg, log, db, nil
}

func runMigrate() error {
	_, log, db, err := setup(true)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info().Msg("database schema is up to date")
	return nil
}

func runServe() error {
	cfg, log, db, err := setup(false)
	if err != nil {
		return err
	}
	defer db.Close()

	s := api.NewServer(cfg, db, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler(log),
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.AllowedOrigins != "*", // Required for cookies
	}))
	api.SetupRoutes(app, s)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.EnableWorkers {
		log.Info().Msg("Starting background workers...")
		go func() {
			if err := api.NewReminderWorker(s).Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("reminder worker exited")
			}
		}()
	} else {
		log.Info().Msg("Background workers disabled (set NEURODASH_ENABLE_WORKERS=true to enable)")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("shutting down")
		stop()
		// Live streams hold their connections open until the server context ends.
		s.Close()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", cfg.GetHTTPAddr()).Msg("Server starting")
	if err := app.Listen(cfg.GetHTTPAddr()); err != nil {
		return err
	}
	return nil
}
