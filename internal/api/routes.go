package api

import (
	"net/http"

	"dcabot/internal/api/handlers"
	"dcabot/internal/api/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Positions     handlers.PositionSource
	Guard         handlers.GuardSource
	Balance       handlers.BalanceSource
	Trades        handlers.TradeSource
	Notifications handlers.NotificationSource

	// APITokenHash - bcrypt-хеш токена доступа; пустая строка выключает auth
	APITokenHash string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
// Организует версионирование API (v1).
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /positions
//	│   └── GET / - позиции всех движков с состоянием выхода
//	├── /account
//	│   └── GET / - equity и снимок портфельного guard
//	├── /trades
//	│   ├── GET / - журнал закрытых сделок
//	│   └── GET /stats - статистика день/неделя/месяц
//	└── /notifications
//	    ├── GET / - журнал событий
//	    └── DELETE / - очистка старых записей
//
// Без версионирования и auth:
//
//	├── /healthz - проверка живости
//	└── /metrics - метрики Prometheus
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов, кроме /metrics)
// 3. CORS (для всех маршрутов)
// 4. Auth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var statusHandler *handlers.StatusHandler
	if deps != nil && deps.Positions != nil && deps.Guard != nil && deps.Balance != nil {
		statusHandler = handlers.NewStatusHandler(deps.Positions, deps.Guard, deps.Balance)
	}

	var tradeHandler *handlers.TradeHandler
	if deps != nil && deps.Trades != nil {
		tradeHandler = handlers.NewTradeHandler(deps.Trades)
	}

	var notificationHandler *handlers.NotificationHandler
	if deps != nil && deps.Notifications != nil {
		notificationHandler = handlers.NewNotificationHandler(deps.Notifications)
	}

	// API v1 routes (под auth)
	api := router.PathPrefix("/api/v1").Subrouter()
	if deps != nil {
		api.Use(middleware.Auth(deps.APITokenHash))
	}

	// Status routes
	if statusHandler != nil {
		api.HandleFunc("/positions", statusHandler.GetPositions).Methods("GET")
		api.HandleFunc("/account", statusHandler.GetAccount).Methods("GET")
	}

	// Trade routes
	if tradeHandler != nil {
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
		api.HandleFunc("/trades/stats", tradeHandler.GetStats).Methods("GET")
	}

	// Notification routes
	if notificationHandler != nil {
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
		api.HandleFunc("/notifications", notificationHandler.ClearNotifications).Methods("DELETE")
	}

	// Метрики Prometheus (без auth - скрейпится изнутри периметра)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
