package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"dcabot/internal/api"
	"dcabot/internal/bot"
	"dcabot/internal/config"
	"dcabot/internal/exchange"
	"dcabot/internal/models"
	"dcabot/internal/notifier"
	"dcabot/internal/repository"
	"dcabot/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("не удалось подключиться к БД", utils.Err(err))
	}
	defer db.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.EnsureSchema(schemaCtx, db); err != nil {
		schemaCancel()
		logger.Fatal("не удалось подготовить схему БД", utils.Err(err))
	}
	schemaCancel()
	logger.Info("база данных готова", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Репозитории
	tradeRepo := repository.NewTradeRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	// Биржа
	venue := exchange.NewBybit(cfg.Bybit.APIKey, cfg.Bybit.APISecret, cfg.Bybit.Testnet, logger)
	defer venue.Close()

	// Ядро бота
	guard := bot.NewAccountGuard(cfg.Risk)
	exec := bot.NewOrderExecutor(venue, cfg.Bot, cfg.Bybit.DryRun, logger)
	if cfg.Bybit.DryRun {
		logger.Warn("DRY_RUN включён: ордера не отправляются на биржу")
	}

	// Уведомления
	notifyCh := make(chan *models.Notification, cfg.Bot.NotifyBuffer)
	telegram := notifier.NewTelegramSender(cfg.Telegram, logger)
	dispatcher := notifier.NewDispatcher(notifyCh, notifRepo, telegram, logger)

	// Источник входных сигналов подключается снаружи; без него бот
	// ведёт восстановленные позиции (усреднение, тейки, стопы), но
	// новых не открывает.
	manager := bot.NewEngineManager(cfg, venue, exec, guard, nil, nil, notifyCh, tradeRepo, logger)

	// HTTP API статуса
	deps := &api.Dependencies{
		Positions:     manager,
		Guard:         guard,
		Balance:       venue,
		Trades:        tradeRepo,
		Notifications: notifRepo,
		APITokenHash:  cfg.Security.APIToken,
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := manager.Run(ctx); err != nil {
			logger.Error("менеджер движков завершился с ошибкой", utils.Err(err))
		}
	}()

	go func() {
		logger.Info("HTTP сервер запущен", utils.String("addr", server.Addr))
		var serveErr error
		if cfg.Server.UseHTTPS {
			serveErr = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Fatal("HTTP сервер упал", utils.Err(serveErr))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("остановка бота...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP сервер остановлен принудительно", utils.Err(err))
	}

	wg.Wait()
	logger.Info("бот остановлен")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
