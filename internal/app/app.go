package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Prost0Name/WeatherBot/internal/config"
	"github.com/Prost0Name/WeatherBot/internal/scheduler"
	"github.com/Prost0Name/WeatherBot/internal/store"
	"github.com/Prost0Name/WeatherBot/internal/telegram"
	"github.com/Prost0Name/WeatherBot/internal/weather"
)

type App struct {
	cfg    config.Config
	log    *zap.Logger
	bot    *tgbotapi.BotAPI
	http   *fiber.App
	repo   store.Repo
	router *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	srv := fiber.New(fiber.Config{
		AppName:               "weather-bot",
		DisableStartupMessage: true,
		ReadTimeout:           3 * time.Second,
		WriteTimeout:          3 * time.Second,
	})
	srv.Use(fiberlogger.New())
	srv.Use(recover.New())
	srv.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-bot",
		})
	})

	return &App{cfg: cfg, log: log, bot: bot, http: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting weather-bot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.Duration("sweep_interval", a.cfg.SweepInterval),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	wx := weather.NewClient(&http.Client{Timeout: 10 * time.Second}, a.cfg.WeatherAPIKey)
	a.router = telegram.NewRouter(a.bot, a.log, a.repo, wx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := scheduler.New(a.repo, wx, a.router, a.log, a.cfg.SweepInterval)
	go notifier.Run(ctx)

	go func() {
		if err := a.http.Listen(a.cfg.HTTPAddr); err != nil {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.http.ShutdownWithContext(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
