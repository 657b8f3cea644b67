package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// validator.go - валидация данных конфигурации
//
// Назначение:
// Проверка корректности торговых параметров и учётных данных
// до запуска движков. Ошибки собираются в ValidationErrors,
// чтобы оператор увидел все проблемы конфигурации сразу.

// Предопределённые ошибки валидации
var (
	ErrInvalidSymbol    = errors.New("invalid symbol format")
	ErrInvalidPercent   = errors.New("percentage out of range")
	ErrInvalidLeverage  = errors.New("leverage out of range")
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrInvalidAPISecret = errors.New("invalid API secret")
)

// symbolPattern - допустимые символы инструмента: буквы, цифры
// и разделители -, _, / (разделители вырезаются при нормализации)
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9\-_/]{2,30}$`)

// apiKeyPattern - API ключи бирж: буквы, цифры, -, _
var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9\-_]{16,128}$`)

// ValidateSymbol проверяет формат торгового символа (BTCUSDT).
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// NormalizeSymbol приводит символ к каноническому виду:
// верхний регистр, без разделителей.
//
// Примеры:
//   - "btc-usdt" -> "BTCUSDT"
//   - "BTC_USDT" -> "BTCUSDT"
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
}

// IsValidSymbol - bool-вариант ValidateSymbol.
func IsValidSymbol(symbol string) bool {
	return ValidateSymbol(symbol) == nil
}

// ValidatePercentage проверяет процентное значение в диапазоне [0, 100].
func ValidatePercentage(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: %v", ErrInvalidPercent, pct)
	}
	return nil
}

// ValidateStopLoss проверяет величину стопа: (0, 100] процентов.
func ValidateStopLoss(sl float64) error {
	if sl <= 0 || sl > 100 {
		return fmt.Errorf("%w: stop loss %v", ErrInvalidPercent, sl)
	}
	return nil
}

// ValidateLeverage проверяет плечо: [1, 100].
func ValidateLeverage(leverage int) error {
	if leverage < 1 || leverage > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidLeverage, leverage)
	}
	return nil
}

// ValidateAPIKey проверяет формат API ключа биржи.
func ValidateAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAPIKey)
	}
	if !apiKeyPattern.MatchString(apiKey) {
		return fmt.Errorf("%w: bad format", ErrInvalidAPIKey)
	}
	return nil
}

// IsValidAPIKey - bool-вариант ValidateAPIKey.
func IsValidAPIKey(apiKey string) bool {
	return ValidateAPIKey(apiKey) == nil
}

// ValidateAPISecret проверяет секрет API: минимум 16 символов.
// Формат не ограничиваем - секреты бирж содержат спецсимволы.
func ValidateAPISecret(secret string) error {
	if len(secret) < 16 {
		return fmt.Errorf("%w: too short", ErrInvalidAPISecret)
	}
	return nil
}

// ============================================================
// Накопитель ошибок валидации
// ============================================================

// ValidationError - одна ошибка валидации с именем поля.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors - накопитель ошибок для полной проверки конфигурации.
type ValidationErrors []ValidationError

// Add добавляет ошибку по полю и сообщению.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// AddError добавляет ошибку если err != nil.
func (v *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	v.Add(field, err.Error())
}

// HasErrors сообщает, были ли накоплены ошибки.
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Error собирает все ошибки в одну строку.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}
