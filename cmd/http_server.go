package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/auth"
	"github.com/assignwork/assignwork/internal/core/events"
	"github.com/assignwork/assignwork/internal/oauth"
	"github.com/assignwork/assignwork/internal/rbac"
	rbacstore "github.com/assignwork/assignwork/internal/rbac/postgres"
	"github.com/assignwork/assignwork/internal/session"
	"github.com/assignwork/assignwork/internal/task"
	taskstore "github.com/assignwork/assignwork/internal/task/postgres"
	"github.com/assignwork/assignwork/internal/transport/rest"
	"github.com/assignwork/assignwork/internal/user"
	userstore "github.com/assignwork/assignwork/internal/user/postgres"
	"github.com/assignwork/assignwork/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type appDependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	GormDB   *gorm.DB
	Bus      *events.EventBus
	Sessions *session.Manager
	Users    *user.Service
	RBAC     *rbac.Service
	Tasks    *task.Service
	OAuth    *auth.Handler
}

func startHTTPServer() {
	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.L()

	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	router := rest.NewRouter(rest.Dependencies{
		Config:          deps.Config,
		DB:              deps.DB,
		Sessions:        deps.Sessions,
		Users:           deps.Users,
		RBAC:            deps.RBAC,
		Tasks:           deps.Tasks,
		OAuth:           deps.OAuth,
		OpenAPISpecPath: "api/openapi.yml",
	})

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	lg.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
		deps.Bus.Close()
		if err := deps.DB.Close(); err != nil {
			lg.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			lg.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	lg.Info("server stopped")
}

func initializeDependencies() (*appDependencies, error) {
	cfg, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGormDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	lg := logger.L()

	bus := events.NewEventBus(lg)
	events.SubscribeAuditLogger(bus, lg)

	userRepo := userstore.NewRepository(gormDB)
	rbacRepo := rbacstore.NewRepository(gormDB)
	taskRepo := taskstore.NewRepository(gormDB)

	users := user.NewService(userRepo, bus, lg)
	rbacService := rbac.NewService(rbacRepo, bus, lg)
	tasks := task.NewService(taskRepo, lg)

	oauthClient := oauth.NewClient(cfg.SSO, lg)

	sessions, err := session.NewManager(cfg.Session, oauthClient, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	return &appDependencies{
		Config:   cfg,
		DB:       db,
		GormDB:   gormDB,
		Bus:      bus,
		Sessions: sessions,
		Users:    users,
		RBAC:     rbacService,
		Tasks:    tasks,
		OAuth:    auth.NewHandler(oauthClient, sessions, users),
	}, nil
}

// initDB opens the pgx-backed connection pool used for health checks and
// raw queries.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGormDB layers the ORM over the already-open pool so both views share
// one set of connections.
func initGormDB(db *sqlx.DB) (*gorm.DB, error) {
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	return gormDB, nil
}
