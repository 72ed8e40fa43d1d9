package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/newsdesk/newsdesk/cmd/newsdesk/cli"
	"github.com/newsdesk/newsdesk/internal/ads"
	"github.com/newsdesk/newsdesk/internal/app"
	"github.com/newsdesk/newsdesk/internal/articles"
	"github.com/newsdesk/newsdesk/internal/auth"
	"github.com/newsdesk/newsdesk/internal/authors"
	"github.com/newsdesk/newsdesk/internal/categories"
	"github.com/newsdesk/newsdesk/internal/comments"
	"github.com/newsdesk/newsdesk/internal/contacts"
	"github.com/newsdesk/newsdesk/internal/likes"
	"github.com/newsdesk/newsdesk/internal/media"
	"github.com/newsdesk/newsdesk/internal/newsletter"
	"github.com/newsdesk/newsdesk/internal/observability"
	"github.com/newsdesk/newsdesk/internal/platform/cache"
	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/settings"
	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/users"
	"github.com/newsdesk/newsdesk/internal/workflow"
	"github.com/newsdesk/newsdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	var mailer shared.Mailer
	if cfg.MailConfigured() {
		mailClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := mailClient.Close(); err != nil {
				logger.Warn("mail queue close", slog.Any("error", err))
			}
		}()
		mailer = mailClient
	} else {
		logger.Info("smtp not configured, outbound mail disabled")
	}

	metrics := observability.NewMetrics()
	workflowMetrics := workflow.NewMetrics(metrics.Registerer())

	auditLogger := shared.NewAuditLogger(dbpool)
	reviewHistory := shared.NewReviewHistory(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	rbacService := rbac.NewService(rbac.NewRepository(dbpool), auditLogger, logger)
	rbacMiddleware := rbac.Middleware{Logger: logger}
	rbacHandler := rbac.NewHandler(logger, rbacService, rbacMiddleware)

	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := auth.NewService(
		auth.NewRepository(dbpool),
		rbacService,
		tokenIssuer,
		auth.NewRefreshStore(redisClient, cfg.JWTRefreshTTL),
		auth.NewResetStore(redisClient, cfg.PasswordResetTTL),
		mailer,
		logger,
		auth.Options{PublicBaseURL: cfg.PublicBaseURL, BcryptCost: cfg.BcryptCost},
	)
	authHandler := auth.NewHandler(logger, authService, rbacMiddleware, cfg.LoginRateLimitPerMinute)

	articlesService := articles.NewService(articles.NewRepository(dbpool), articles.Options{
		History: reviewHistory,
		Audit:   auditLogger,
		Mailer:  mailer,
		Metrics: workflowMetrics,
		Logger:  logger,
	})
	articlesHandler := articles.NewHandler(logger, articlesService, rbacMiddleware)

	categoriesService := categories.NewService(categories.NewRepository(dbpool), reviewHistory, auditLogger, workflowMetrics, logger)
	categoriesHandler := categories.NewHandler(logger, categoriesService, rbacMiddleware)

	adsService := ads.NewService(ads.NewRepository(dbpool), reviewHistory, auditLogger, workflowMetrics, logger)
	placementsService := ads.NewPlacementService(ads.NewPlacementRepository(dbpool), auditLogger, logger)
	adsHandler := ads.NewHandler(logger, adsService, rbacMiddleware).
		WithPlacements(ads.NewPlacementHandler(logger, placementsService, rbacMiddleware))

	usersService := users.NewService(users.NewRepository(dbpool), users.Options{
		History:    reviewHistory,
		Audit:      auditLogger,
		Mailer:     mailer,
		Metrics:    workflowMetrics,
		Logger:     logger,
		BcryptCost: cfg.BcryptCost,
	})
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)
	authorsHandler := authors.NewHandler(logger, authors.NewService(authors.NewRepository(dbpool)), rbacMiddleware)
	settingsHandler := settings.NewHandler(logger, settings.NewService(settings.NewRepository(dbpool), auditLogger, logger), rbacMiddleware)

	commentsService := comments.NewService(comments.NewRepository(dbpool), logger)
	commentsHandler := comments.NewHandler(logger, commentsService, rbacMiddleware, cfg.PublicWritesPerHour)

	likesHandler := likes.NewHandler(logger, likes.NewService(likes.NewRepository(dbpool)), rbacMiddleware)
	mediaHandler := media.NewHandler(logger, media.NewService(media.NewRepository(dbpool)), rbacMiddleware)

	newsletterService := newsletter.NewService(newsletter.NewRepository(dbpool), newsletter.Options{
		Mailer:        mailer,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})
	newsletterHandler := newsletter.NewHandler(logger, newsletterService, rbacMiddleware, cfg.PublicWritesPerHour)

	contactsService := contacts.NewService(contacts.NewRepository(dbpool), idempotencyStore, logger)
	contactsHandler := contacts.NewHandler(logger, contactsService, rbacMiddleware, cfg.PublicWritesPerHour)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		Authenticate:      auth.Authenticate(tokenIssuer),
		AuthHandler:       authHandler,
		RBACHandler:       rbacHandler,
		ArticlesHandler:   articlesHandler,
		CategoriesHandler: categoriesHandler,
		AdsHandler:        adsHandler,
		UsersHandler:      usersHandler,
		CommentsHandler:   commentsHandler,
		LikesHandler:      likesHandler,
		MediaHandler:      mediaHandler,
		NewsletterHandler: newsletterHandler,
		ContactsHandler:   contactsHandler,
		JobHandler:        jobHandler,
		AuthorsHandler:    authorsHandler,
		SettingsHandler:   settingsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles `newsdesk jobs trigger <type>` and `newsdesk jobs stats`.
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: newsdesk jobs trigger <type> | stats")
	}
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: newsdesk jobs trigger <type>")
		}
		days := int(cfg.ContactArchiveAfter / (24 * time.Hour))
		info, err := jobsCLI.Trigger(ctx, args[1], days)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "enqueued %s as %s\n", info.Type, info.ID)
		return nil
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		return cli.WriteStats(os.Stdout, stats)
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
}
