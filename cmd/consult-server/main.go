package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/consult/internal/config"
	"github.com/ehr/consult/internal/domain/consultation"
	"github.com/ehr/consult/internal/domain/patient"
	"github.com/ehr/consult/internal/platform/db"
	"github.com/ehr/consult/internal/platform/middleware"
	"github.com/ehr/consult/internal/platform/render"
	"github.com/ehr/consult/internal/platform/sandbox"
	"github.com/ehr/consult/internal/platform/session"
	"github.com/ehr/consult/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consult-server",
		Short: "Dosing consultation dashboard",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Timezone: cfg.Timezone,
		AppName:  "consult-server",
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reproducible demo patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			seedCfg := sandbox.DefaultSeedConfig()
			seedCfg.PatientCount, _ = cmd.Flags().GetInt("patients")
			seedCfg.HistoryDays, _ = cmd.Flags().GetInt("days")
			seedCfg.Seed, _ = cmd.Flags().GetInt64("seed")
			seedCfg.Today = consultation.CalendarDay(time.Now(), loc)

			ds, result := sandbox.NewSeeder(seedCfg).Generate()
			if err := sandbox.Load(ctx, pool, ds); err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Printf("Seeded %d patient(s): %d predictions, %d side effects, %d PHQ-9, %d adherence, %d prescriptions.\n",
				result.Patients, result.Predictions, result.SideEffects, result.PHQ9, result.Adherence, result.Prescriptions)
			return nil
		},
	}
	def := sandbox.DefaultSeedConfig()
	cmd.Flags().Int("patients", def.PatientCount, "Number of demo patients")
	cmd.Flags().Int("days", def.HistoryDays, "Days of history per series")
	cmd.Flags().Int64("seed", def.Seed, "Random seed")
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// serverDeps are the stores the HTTP server is built on. Pool is optional;
// without it /health/db is not mounted.
type serverDeps struct {
	Patients      patient.Repository
	Consultations consultation.Repository
	Sessions      session.Store
	Pool          *pgxpool.Pool
}

// newServer wires middleware, renderer and routes.
func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	renderer, err := render.New()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = render.HTTPErrorHandler(logger)

	sessions := session.NewManager(deps.Sessions, session.NewSigner(cfg.SessionSecret), cfg.SessionTTL,
		session.WithSecureCookie(cfg.IsProduction()),
		session.WithLogger(logger),
	)

	metrics := telemetry.NewProvider(cfg.MetricsEnabled)
	if deps.Pool != nil {
		registerPoolGauges(metrics, deps.Pool)
	}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(sessions.Middleware())
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Pool != nil {
		e.GET("/health/db", db.HealthHandler(deps.Pool))
	}
	e.GET(telemetry.MetricsPath, metrics.Handler())
	e.StaticFS("/static", render.Static())

	apiV1 := e.Group("/api/v1")

	patientSvc := patient.NewService(deps.Patients, cfg.SearchLimit)
	patient.NewHandler(patientSvc, sessions, logger).RegisterRoutes(e, apiV1)

	consultSvc := consultation.NewService(deps.Consultations, loc, logger)
	consultation.NewHandler(consultSvc).RegisterRoutes(e)

	return e, nil
}

func registerPoolGauges(metrics *telemetry.Provider, pool *pgxpool.Pool) {
	metrics.RegisterGauge("db_pool_acquired_connections", "Number of acquired database pool connections.", func() float64 {
		return float64(db.Stats(pool).AcquiredConns)
	})
	metrics.RegisterGauge("db_pool_idle_connections", "Number of idle database pool connections.", func() float64 {
		return float64(db.Stats(pool).IdleConns)
	})
	metrics.RegisterGauge("db_pool_total_connections", "Number of open database pool connections.", func() float64 {
		return float64(db.Stats(pool).TotalConns)
	})
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Sessions
	var store session.Store = session.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		store = session.NewRedisStore(client)
		logger.Info().Msg("using redis session store")
	} else {
		logger.Warn().Msg("REDIS_URL not set; sessions are kept in memory")
	}

	e, err := newServer(cfg, logger, serverDeps{
		Patients:      patient.NewRepoPG(pool),
		Consultations: consultation.NewRepoPG(pool),
		Sessions:      store,
		Pool:          pool,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
