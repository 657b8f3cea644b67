package config

import (
	"strings"
	"testing"
	"time"
)

// setValidEnv выставляет минимально необходимое окружение
func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("BYBIT_API_KEY", "test-api-key-1234567890")
	t.Setenv("BYBIT_API_SECRET", "test-api-secret-1234567890")
}

func TestLoad_Defaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port: ожидали 8080, получили %d", cfg.Server.Port)
	}
	if cfg.Trading.HardSLPercent != 2.0 {
		t.Errorf("HardSLPercent: ожидали 2.0, получили %v", cfg.Trading.HardSLPercent)
	}
	if cfg.Trading.DCAStepPercent != 0.3 {
		t.Errorf("DCAStepPercent: ожидали 0.3, получили %v", cfg.Trading.DCAStepPercent)
	}
	if cfg.Trading.DCAMinInterval != 5*time.Minute {
		t.Errorf("DCAMinInterval: ожидали 5m, получили %v", cfg.Trading.DCAMinInterval)
	}
	if cfg.Risk.MaxOpenPositions != 8 {
		t.Errorf("MaxOpenPositions: ожидали 8, получили %d", cfg.Risk.MaxOpenPositions)
	}
	if cfg.Risk.TotalRiskCapPercent != 20.0 {
		t.Errorf("TotalRiskCapPercent: ожидали 20.0, получили %v", cfg.Risk.TotalRiskCapPercent)
	}
	if len(cfg.Bybit.Symbols) != 1 || cfg.Bybit.Symbols[0] != "BTCUSDT" {
		t.Errorf("Symbols: ожидали [BTCUSDT], получили %v", cfg.Bybit.Symbols)
	}
}

func TestLoad_SymbolList(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SYMBOLS", "btcusdt, eth-usdt ,SOLUSDT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if len(cfg.Bybit.Symbols) != len(want) {
		t.Fatalf("Symbols: ожидали %v, получили %v", want, cfg.Bybit.Symbols)
	}
	for i, s := range want {
		if cfg.Bybit.Symbols[i] != s {
			t.Errorf("Symbols[%d]: ожидали %s, получили %s", i, s, cfg.Bybit.Symbols[i])
		}
	}
}

func TestLoad_MissingEncryptionKey(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	t.Setenv("BYBIT_API_KEY", "test-api-key-1234567890")
	t.Setenv("BYBIT_API_SECRET", "test-api-secret-1234567890")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() должен вернуть ошибку без ENCRYPTION_KEY")
	}
	if !strings.Contains(err.Error(), "ENCRYPTION_KEY") {
		t.Errorf("ошибка должна упоминать ENCRYPTION_KEY: %v", err)
	}
}

func TestLoad_BadEncryptionKeyLength(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "too-short")
	t.Setenv("BYBIT_API_KEY", "test-api-key-1234567890")
	t.Setenv("BYBIT_API_SECRET", "test-api-secret-1234567890")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() должен вернуть ошибку при ключе не 32 байта")
	}
}

func TestLoad_RangeValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad server port", "SERVER_PORT", "99999"},
		{"negative leverage", "LEVERAGE", "-1"},
		{"zero hard sl", "HARD_SL_PERCENT", "0"},
		{"qty ratio too big", "QTY_REDUCE_RATIO", "1.5"},
		{"tp1 ratio zero", "TP1_CLOSE_RATIO", "0"},
		{"zero max positions", "MAX_OPEN_POSITIONS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() должен вернуть ошибку для %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_SymbolParams(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SYMBOL_PARAMS", `{"btc-usdt":{"hard_sl_percent":1.5,"max_dca_levels":5,"enable_hedging":true}}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Ключ нормализуется
	eff := cfg.Resolve("BTCUSDT")
	if eff.HardSLPercent != 1.5 {
		t.Errorf("HardSLPercent: ожидали переопределение 1.5, получили %v", eff.HardSLPercent)
	}
	if eff.MaxDCALevels != 5 {
		t.Errorf("MaxDCALevels: ожидали 5, получили %d", eff.MaxDCALevels)
	}
	if !eff.EnableHedging {
		t.Error("EnableHedging должен быть переопределён в true")
	}
	// Непереопределённые поля берутся из Trading
	if eff.DCAStepPercent != cfg.Trading.DCAStepPercent {
		t.Error("непереопределённые поля должны совпадать с общими")
	}
}

func TestLoad_SymbolParamsInvalidJSON(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SYMBOL_PARAMS", `{"BTCUSDT": not-json}`)

	if _, err := Load(); err == nil {
		t.Fatal("Load() должен вернуть ошибку на невалидном SYMBOL_PARAMS")
	}
}

func TestResolve_NoOverrides(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	eff := cfg.Resolve("ETHUSDT")
	if eff != cfg.Trading {
		t.Error("без переопределений Resolve должен вернуть копию Trading")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "bot",
		Password: "secret", Name: "dcabot", SSLMode: "disable",
	}

	dsn := d.DSN()
	if !strings.Contains(dsn, "password=secret") {
		t.Error("DSN должен содержать пароль")
	}

	safe := d.DSNWithoutPassword()
	if strings.Contains(safe, "secret") {
		t.Error("DSNWithoutPassword не должен содержать пароль")
	}
}
