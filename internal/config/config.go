package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"dcabot/pkg/crypto"
	"dcabot/pkg/utils"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Bybit    BybitConfig
	Trading  TradingConfig
	Risk     RiskConfig
	Bot      BotConfig
	Telegram TelegramConfig
	Logging  LoggingConfig

	// Symbols - пер-символьные переопределения торговых параметров
	// (ключ - символ, значения перекрывают Trading)
	Symbols map[string]SymbolParams
}

// ServerConfig - настройки HTTP сервера статуса
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	APIToken      string // bcrypt-хеш токена доступа к API статуса
	EncryptionKey string // ключ AES-256 для API ключей биржи в БД/ENV
}

// BybitConfig - подключение к бирже
type BybitConfig struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Symbols   []string // торгуемые инструменты
	DryRun    bool     // true = решения логируются, ордера не отправляются
}

// TradingConfig - параметры стратегии управления позицией.
//
// Все проценты заданы "в процентах" (2.0 = 2%), как их сравнивает
// процедура выхода.
type TradingConfig struct {
	Leverage           int
	InitialRiskPercent float64 // риск на первый вход, % капитала

	// Жёсткий стоп
	HardSLPercent float64

	// ATR-стоп (приоритетнее процентного мягкого стопа при наличии данных)
	UseATRStop        bool
	ATRPeriod         int
	ATRStopMultiplier float64

	// Мягкий стоп
	SoftSLPercent float64
	SoftSLMinutes int // убыточная позиция старше N минут закрывается

	// Таймаут позиции
	EnablePositionTimeout bool
	MaxPositionMinutes    int

	// Перевод в безубыток
	BreakEvenAfterPercent float64 // по достигнутой прибыли (0 = выключено)
	BreakEvenAfterMinutes int     // по возрасту позиции (0 = выключено)
	MinProfitToBE         float64 // буфер над средней ценой, %

	// Тейк-профиты
	TakeProfitPercent float64 // резервный полный тейк (когда TP1/TP2 не заданы)
	TP1Percent        float64 // 0 = не задан
	TP1CloseRatio     float64
	TP2Percent        float64 // 0 = не задан
	TP2CloseRatio     float64

	// Трейлинг
	TrailingDistancePercent float64

	// Усреднение (DCA)
	DCAStepPercent        float64
	DCAStepMultiplier     float64 // геометрический рост шага
	DCARiskMultiplier     float64 // рост риска на уровень
	MaxDCALevels          int
	MaxDCADrawdownPercent float64 // глубже - усреднение запрещено
	DCAMinInterval        time.Duration

	// Фильтры усреднения (независимые тумблеры)
	EnableDCAADXFilter    bool
	DCAADXThreshold       float64
	ADXPeriod             int
	EnableDCARSIFilter    bool
	RSIPeriod             int
	RSIOverbought         float64
	RSIOversold           float64
	EnableDCASpreadFilter bool
	DCASpreadZThreshold   float64
	EnableDCAVBDFilter    bool
	DCAVBDThreshold       float64
	UseHTFFilter          bool
	HTFInterval           string

	// Хеджирование
	EnableHedging        bool
	MaxHedges            int
	HedgeDelay           time.Duration
	HedgeSizeRatio       float64
	EnableHedgeADXFilter bool
	HedgeADXThreshold    float64

	// Пер-позиционный риск-кап
	EnableRiskCap          bool
	MaxPositionRiskPercent float64
}

// RiskConfig - портфельные лимиты (общие для всех движков)
type RiskConfig struct {
	MaxOpenPositions    int
	TotalRiskCapPercent float64

	EnableDailyTradesGuard bool
	DailyTradesLimit       int

	EnableDailyDrawdownGuard bool
	DailyDrawdownPercent     float64

	EnableDailyProfitGuard bool
	DailyProfitPercent     float64
}

// BotConfig - инфраструктурные настройки движков
type BotConfig struct {
	// WebSocket настройки (event-driven, без polling)
	WSReconnectDelay time.Duration // задержка перед переподключением WS
	WSPingInterval   time.Duration // интервал ping для поддержания соединения
	WSReadTimeout    time.Duration // таймаут чтения WS сообщений

	// Retry логика для критических операций
	MaxRetries   int
	RetryBackoff time.Duration
	OrderTimeout time.Duration // таймаут ожидания исполнения ордера

	// Откат объёма при отказе "max. limit"
	QtyReduceRatio float64

	// Ограничение частоты REST запросов
	RestRate  float64 // запросов в секунду
	RestBurst float64

	// Буферы каналов
	TickBuffer   int // тиков на движок
	NotifyBuffer int // уведомлений
}

// TelegramConfig - уведомления оператору
type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// SymbolParams - пер-символьные переопределения.
// Указатели: nil = использовать общее значение из Trading.
type SymbolParams struct {
	Leverage                *int     `json:"leverage"`
	InitialRiskPercent      *float64 `json:"initial_risk_percent"`
	HardSLPercent           *float64 `json:"hard_sl_percent"`
	SoftSLPercent           *float64 `json:"soft_sl_percent"`
	SoftSLMinutes           *int     `json:"soft_sl_minutes"`
	TakeProfitPercent       *float64 `json:"take_profit_percent"`
	TP1Percent              *float64 `json:"tp1_percent"`
	TP1CloseRatio           *float64 `json:"tp1_close_ratio"`
	TP2Percent              *float64 `json:"tp2_percent"`
	TP2CloseRatio           *float64 `json:"tp2_close_ratio"`
	TrailingDistancePercent *float64 `json:"trailing_distance_percent"`
	DCAStepPercent          *float64 `json:"dca_step_percent"`
	DCAStepMultiplier       *float64 `json:"dca_step_multiplier"`
	MaxDCALevels            *int     `json:"max_dca_levels"`
	MaxDCADrawdownPercent   *float64 `json:"max_dca_drawdown_percent"`
	MaxPositionMinutes      *int     `json:"max_position_minutes"`
	EnableHedging           *bool    `json:"enable_hedging"`
	HedgeSizeRatio          *float64 `json:"hedge_size_ratio"`
}

// json - быстрый кодек для SYMBOL_PARAMS
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "dcabot"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			APIToken:      getEnv("API_TOKEN_HASH", ""),
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Bybit: BybitConfig{
			APIKey:    getEnv("BYBIT_API_KEY", ""),
			APISecret: getEnv("BYBIT_API_SECRET", ""),
			Testnet:   getEnvAsBool("BYBIT_TESTNET", false),
			Symbols:   getEnvAsStringSlice("SYMBOLS", []string{"BTCUSDT"}),
			DryRun:    getEnvAsBool("DRY_RUN", false),
		},
		Trading: TradingConfig{
			Leverage:           getEnvAsInt("LEVERAGE", 10),
			InitialRiskPercent: getEnvAsFloat("INITIAL_RISK_PERCENT", 1.0),

			HardSLPercent: getEnvAsFloat("HARD_SL_PERCENT", 2.0),

			UseATRStop:        getEnvAsBool("USE_ATR_STOP", false),
			ATRPeriod:         getEnvAsInt("ATR_PERIOD", 14),
			ATRStopMultiplier: getEnvAsFloat("ATR_STOP_MULTIPLIER", 1.5),

			SoftSLPercent: getEnvAsFloat("SOFT_SL_PERCENT", 1.0),
			SoftSLMinutes: getEnvAsInt("SOFT_SL_MINUTES", 30),

			EnablePositionTimeout: getEnvAsBool("ENABLE_POSITION_TIMEOUT", false),
			MaxPositionMinutes:    getEnvAsInt("MAX_POSITION_MINUTES", 240),

			BreakEvenAfterPercent: getEnvAsFloat("BREAK_EVEN_AFTER_PERCENT", 0),
			BreakEvenAfterMinutes: getEnvAsInt("BREAK_EVEN_AFTER_MINUTES", 0),
			MinProfitToBE:         getEnvAsFloat("MIN_PROFIT_TO_BE", 0.10),

			TakeProfitPercent: getEnvAsFloat("TAKE_PROFIT_PERCENT", 1.0),
			TP1Percent:        getEnvAsFloat("TP1_PERCENT", 0.5),
			TP1CloseRatio:     getEnvAsFloat("TP1_CLOSE_RATIO", 0.5),
			TP2Percent:        getEnvAsFloat("TP2_PERCENT", 0),
			TP2CloseRatio:     getEnvAsFloat("TP2_CLOSE_RATIO", 0.3),

			TrailingDistancePercent: getEnvAsFloat("TRAILING_DISTANCE_PERCENT", 0.2),

			DCAStepPercent:        getEnvAsFloat("DCA_STEP_PERCENT", 0.3),
			DCAStepMultiplier:     getEnvAsFloat("DCA_STEP_MULTIPLIER", 1.0),
			DCARiskMultiplier:     getEnvAsFloat("DCA_RISK_MULTIPLIER", 1.0),
			MaxDCALevels:          getEnvAsInt("MAX_DCA_LEVELS", 3),
			MaxDCADrawdownPercent: getEnvAsFloat("MAX_DCA_DRAWDOWN_PERCENT", 5.0),
			DCAMinInterval:        getEnvAsDuration("DCA_MIN_INTERVAL", 5*time.Minute),

			EnableDCAADXFilter:    getEnvAsBool("ENABLE_DCA_ADX_FILTER", false),
			DCAADXThreshold:       getEnvAsFloat("DCA_ADX_THRESHOLD", 25.0),
			ADXPeriod:             getEnvAsInt("ADX_PERIOD", 14),
			EnableDCARSIFilter:    getEnvAsBool("ENABLE_DCA_RSI_FILTER", false),
			RSIPeriod:             getEnvAsInt("RSI_PERIOD", 14),
			RSIOverbought:         getEnvAsFloat("RSI_OVERBOUGHT", 70.0),
			RSIOversold:           getEnvAsFloat("RSI_OVERSOLD", 30.0),
			EnableDCASpreadFilter: getEnvAsBool("ENABLE_DCA_SPREAD_FILTER", false),
			DCASpreadZThreshold:   getEnvAsFloat("DCA_SPREAD_Z_THRESHOLD", 2.0),
			EnableDCAVBDFilter:    getEnvAsBool("ENABLE_DCA_VBD_FILTER", false),
			DCAVBDThreshold:       getEnvAsFloat("DCA_VBD_THRESHOLD", 0.6),
			UseHTFFilter:          getEnvAsBool("USE_HTF_FILTER", false),
			HTFInterval:           getEnv("HTF_INTERVAL", "60"),

			EnableHedging:        getEnvAsBool("ENABLE_HEDGING", false),
			MaxHedges:            getEnvAsInt("MAX_HEDGES", 1),
			HedgeDelay:           getEnvAsDuration("HEDGE_DELAY", 0),
			HedgeSizeRatio:       getEnvAsFloat("HEDGE_SIZE_RATIO", 1.0),
			EnableHedgeADXFilter: getEnvAsBool("ENABLE_HEDGE_ADX_FILTER", false),
			HedgeADXThreshold:    getEnvAsFloat("HEDGE_ADX_THRESHOLD", 25.0),

			EnableRiskCap:          getEnvAsBool("ENABLE_RISK_CAP", true),
			MaxPositionRiskPercent: getEnvAsFloat("MAX_POSITION_RISK_PERCENT", 5.0),
		},
		Risk: RiskConfig{
			MaxOpenPositions:    getEnvAsInt("MAX_OPEN_POSITIONS", 8),
			TotalRiskCapPercent: getEnvAsFloat("TOTAL_RISK_CAP_PERCENT", 20.0),

			EnableDailyTradesGuard: getEnvAsBool("ENABLE_DAILY_TRADES_GUARD", false),
			DailyTradesLimit:       getEnvAsInt("DAILY_TRADES_LIMIT", 30),

			EnableDailyDrawdownGuard: getEnvAsBool("ENABLE_DAILY_DRAWDOWN_GUARD", false),
			DailyDrawdownPercent:     getEnvAsFloat("DAILY_DRAWDOWN_PERCENT", 5.0),

			EnableDailyProfitGuard: getEnvAsBool("ENABLE_DAILY_PROFIT_GUARD", false),
			DailyProfitPercent:     getEnvAsFloat("DAILY_PROFIT_PERCENT", 10.0),
		},
		Bot: BotConfig{
			// WebSocket - event-driven, без polling!
			WSReconnectDelay: getEnvAsDuration("WS_RECONNECT_DELAY", 1*time.Second),
			WSPingInterval:   getEnvAsDuration("WS_PING_INTERVAL", 15*time.Second),
			WSReadTimeout:    getEnvAsDuration("WS_READ_TIMEOUT", 30*time.Second),

			// Retry для ордеров
			MaxRetries:   getEnvAsInt("MAX_RETRIES", 4),
			RetryBackoff: getEnvAsDuration("RETRY_BACKOFF", 500*time.Millisecond),
			OrderTimeout: getEnvAsDuration("ORDER_TIMEOUT", 5*time.Second),

			QtyReduceRatio: getEnvAsFloat("QTY_REDUCE_RATIO", 0.8),

			RestRate:  getEnvAsFloat("REST_RATE", 8),
			RestBurst: getEnvAsFloat("REST_BURST", 16),

			TickBuffer:   getEnvAsInt("TICK_BUFFER", 1024),
			NotifyBuffer: getEnvAsInt("NOTIFY_BUFFER", 256),
		},
		Telegram: TelegramConfig{
			Enabled: getEnvAsBool("TELEGRAM_ENABLED", false),
			Token:   getEnv("TELEGRAM_TOKEN", ""),
			ChatID:  getEnv("TELEGRAM_CHAT_ID", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Пер-символьные переопределения: SYMBOL_PARAMS='{"BTCUSDT":{"hard_sl_percent":1.5}}'
	if raw := os.Getenv("SYMBOL_PARAMS"); raw != "" {
		overrides := make(map[string]SymbolParams)
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return nil, fmt.Errorf("SYMBOL_PARAMS parse error: %w", err)
		}
		normalized := make(map[string]SymbolParams, len(overrides))
		for sym, p := range overrides {
			normalized[utils.NormalizeSymbol(sym)] = p
		}
		cfg.Symbols = normalized
	}

	// BYBIT_API_SECRET_ENC - секрет, зашифрованный AES-256-GCM (pkg/crypto).
	// Расшифровывается ключом ENCRYPTION_KEY и имеет приоритет над открытым.
	if enc := getEnv("BYBIT_API_SECRET_ENC", ""); enc != "" {
		secret, err := crypto.DecryptWithKeyString(enc, cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("BYBIT_API_SECRET_ENC decrypt error: %w", err)
		}
		cfg.Bybit.APISecret = secret
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API ключей биржи
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	var errs utils.ValidationErrors
	errs.AddError("BYBIT_API_KEY", utils.ValidateAPIKey(c.Bybit.APIKey))
	errs.AddError("BYBIT_API_SECRET", utils.ValidateAPISecret(c.Bybit.APISecret))
	for _, sym := range c.Bybit.Symbols {
		errs.AddError("SYMBOLS", utils.ValidateSymbol(sym))
	}
	if errs.HasErrors() {
		return fmt.Errorf("config validation: %s", errs.Error())
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Bot.MaxRetries < 0 || c.Bot.MaxRetries > 10 {
		return fmt.Errorf("MAX_RETRIES must be in [0, 10], got %d", c.Bot.MaxRetries)
	}

	if c.Bot.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %v", c.Bot.OrderTimeout)
	}

	if c.Bot.WSReadTimeout <= 0 {
		return fmt.Errorf("WS_READ_TIMEOUT must be positive, got %v", c.Bot.WSReadTimeout)
	}

	if c.Bot.QtyReduceRatio <= 0 || c.Bot.QtyReduceRatio >= 1 {
		return fmt.Errorf("QTY_REDUCE_RATIO must be in (0, 1), got %v", c.Bot.QtyReduceRatio)
	}

	if err := utils.ValidateLeverage(c.Trading.Leverage); err != nil {
		return fmt.Errorf("LEVERAGE: %w", err)
	}

	if err := utils.ValidateStopLoss(c.Trading.HardSLPercent); err != nil {
		return fmt.Errorf("HARD_SL_PERCENT: %w", err)
	}

	if c.Trading.TP1CloseRatio <= 0 || c.Trading.TP1CloseRatio > 1 {
		return fmt.Errorf("TP1_CLOSE_RATIO must be in (0, 1], got %v", c.Trading.TP1CloseRatio)
	}

	if c.Trading.TP2CloseRatio <= 0 || c.Trading.TP2CloseRatio > 1 {
		return fmt.Errorf("TP2_CLOSE_RATIO must be in (0, 1], got %v", c.Trading.TP2CloseRatio)
	}

	if c.Trading.MaxDCALevels < 0 {
		return fmt.Errorf("MAX_DCA_LEVELS cannot be negative, got %d", c.Trading.MaxDCALevels)
	}

	if c.Risk.MaxOpenPositions < 1 {
		return fmt.Errorf("MAX_OPEN_POSITIONS must be at least 1, got %d", c.Risk.MaxOpenPositions)
	}

	if c.Risk.TotalRiskCapPercent <= 0 {
		return fmt.Errorf("TOTAL_RISK_CAP_PCT must be positive, got %v", c.Risk.TotalRiskCapPercent)
	}

	return nil
}

// Resolve возвращает эффективные торговые параметры для символа:
// копию Trading с применёнными пер-символьными переопределениями.
func (c *Config) Resolve(symbol string) TradingConfig {
	out := c.Trading
	p, ok := c.Symbols[utils.NormalizeSymbol(symbol)]
	if !ok {
		return out
	}

	if p.Leverage != nil {
		out.Leverage = *p.Leverage
	}
	if p.InitialRiskPercent != nil {
		out.InitialRiskPercent = *p.InitialRiskPercent
	}
	if p.HardSLPercent != nil {
		out.HardSLPercent = *p.HardSLPercent
	}
	if p.SoftSLPercent != nil {
		out.SoftSLPercent = *p.SoftSLPercent
	}
	if p.SoftSLMinutes != nil {
		out.SoftSLMinutes = *p.SoftSLMinutes
	}
	if p.TakeProfitPercent != nil {
		out.TakeProfitPercent = *p.TakeProfitPercent
	}
	if p.TP1Percent != nil {
		out.TP1Percent = *p.TP1Percent
	}
	if p.TP1CloseRatio != nil {
		out.TP1CloseRatio = *p.TP1CloseRatio
	}
	if p.TP2Percent != nil {
		out.TP2Percent = *p.TP2Percent
	}
	if p.TP2CloseRatio != nil {
		out.TP2CloseRatio = *p.TP2CloseRatio
	}
	if p.TrailingDistancePercent != nil {
		out.TrailingDistancePercent = *p.TrailingDistancePercent
	}
	if p.DCAStepPercent != nil {
		out.DCAStepPercent = *p.DCAStepPercent
	}
	if p.DCAStepMultiplier != nil {
		out.DCAStepMultiplier = *p.DCAStepMultiplier
	}
	if p.MaxDCALevels != nil {
		out.MaxDCALevels = *p.MaxDCALevels
	}
	if p.MaxDCADrawdownPercent != nil {
		out.MaxDCADrawdownPercent = *p.MaxDCADrawdownPercent
	}
	if p.MaxPositionMinutes != nil {
		out.MaxPositionMinutes = *p.MaxPositionMinutes
	}
	if p.EnableHedging != nil {
		out.EnableHedging = *p.EnableHedging
	}
	if p.HedgeSizeRatio != nil {
		out.HedgeSizeRatio = *p.HedgeSizeRatio
	}

	return out
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, utils.NormalizeSymbol(p))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
