package bot

import (
	"fmt"
	"math"
	"time"

	"dcabot/internal/config"
	"dcabot/internal/models"
	"dcabot/pkg/utils"
)

// Signal - сигнал процедуры выхода. На один тик выдаётся не более одного.
type Signal string

const (
	SignalNone    Signal = ""
	SignalHardSL  Signal = "HARD_SL"
	SignalSoftSL  Signal = "SOFT_SL"
	SignalTimeout Signal = "TIMEOUT"
	SignalTP      Signal = "TP" // полный тейк (резервный или финальный)
	SignalTP1     Signal = "TP1"
	SignalTP2     Signal = "TP2"
	SignalTrail   Signal = "TRAIL"
	SignalDCA     Signal = "DCA"
)

// Decision - результат одного прохода процедуры выхода
type Decision struct {
	Signal Signal
	Reason string
}

// FeatureView - снимок рыночных индикаторов для фильтров.
//
// Вторым значением каждый метод сообщает, доступны ли данные.
// Отсутствие данных трактуется как "не блокировать": фильтр,
// которому нечего проверить, пропускает решение дальше.
type FeatureView interface {
	// ATR возвращает средний истинный диапазон в абсолютных ценах
	ATR(period int) (float64, bool)

	// ADX возвращает силу тренда и его направление (bullish = вверх)
	ADX(period int) (value float64, bullish bool, ok bool)

	// RSI возвращает осциллятор [0,100]
	RSI(period int) (float64, bool)

	// SpreadZ возвращает z-score текущего bid/ask спреда
	SpreadZ() (float64, bool)

	// BuyVolumeShare возвращает долю объёма тейкеров-покупателей [0,1]
	BuyVolumeShare() (float64, bool)

	// HTFTrend возвращает направление свечи старшего таймфрейма
	HTFTrend() (models.Side, bool)
}

// SignalSource - внешний источник входных сигналов.
// Ядро трактует рекомендацию как непрозрачный вход.
type SignalSource interface {
	// Evaluate возвращает направление входа и причину; ok=false - входа нет
	Evaluate(symbol string, price float64) (side models.Side, reason string, ok bool)
}

// CheckExit - процедура выхода, вызывается на каждый тик для открытой позиции.
//
// Ветви проверяются строго по порядку, срабатывает первая подходящая.
// Порядок менять нельзя: ветви безубытка и TP1 мутируют состояние
// (взводят трейлинг, ставят флаги), которое читают последующие ветви.
//
// Побочные эффекты пишутся в st; позиция не мутируется.
func CheckExit(pos *models.Position, st *models.ExitState, price float64, now time.Time, cfg config.TradingConfig, features FeatureView) Decision {
	if !pos.IsOpen() {
		return Decision{}
	}

	change := utils.PctChange(price, pos.AvgPrice)
	favorable := change
	if !pos.Side.IsLong() {
		favorable = -change
	}
	adverse := -favorable
	elapsed := now.Sub(pos.OpenTime)

	// 1. Жёсткий стоп
	if cfg.HardSLPercent > 0 && adverse >= cfg.HardSLPercent {
		return Decision{SignalHardSL, fmt.Sprintf("убыток %.2f%% >= %.2f%%", adverse, cfg.HardSLPercent)}
	}

	// 2. ATR-стоп
	if cfg.UseATRStop && features != nil {
		if atr, ok := features.ATR(cfg.ATRPeriod); ok && atr > 0 {
			threshold := atr * cfg.ATRStopMultiplier
			if pos.Side.IsLong() && price <= pos.AvgPrice-threshold {
				return Decision{SignalSoftSL, fmt.Sprintf("ATR-стоп: цена %.6g <= %.6g", price, pos.AvgPrice-threshold)}
			}
			if !pos.Side.IsLong() && price >= pos.AvgPrice+threshold {
				return Decision{SignalSoftSL, fmt.Sprintf("ATR-стоп: цена %.6g >= %.6g", price, pos.AvgPrice+threshold)}
			}
		}
	}

	// 3. Безубыток по прибыли: взводит трейлинг на средней цене, сигнала нет
	if cfg.BreakEvenAfterPercent > 0 && !st.TP1Done && favorable >= cfg.BreakEvenAfterPercent {
		armBreakEven(pos, st, price)
	}

	// 4. Безубыток по времени: требует минимальный буфер прибыли
	if cfg.BreakEvenAfterMinutes > 0 && !st.TP1Done &&
		elapsed >= time.Duration(cfg.BreakEvenAfterMinutes)*time.Minute &&
		favorable >= cfg.MinProfitToBE {
		armBreakEven(pos, st, price)
	}

	// 5. Таймаут позиции
	if cfg.EnablePositionTimeout && cfg.MaxPositionMinutes > 0 &&
		elapsed >= time.Duration(cfg.MaxPositionMinutes)*time.Minute {
		return Decision{SignalTimeout, fmt.Sprintf("позиция старше %d мин", cfg.MaxPositionMinutes)}
	}

	// 6. Резервный полный тейк: только когда частичные TP не настроены вовсе
	if cfg.TP1Percent <= 0 && cfg.TP2Percent <= 0 &&
		cfg.TakeProfitPercent > 0 && favorable >= cfg.TakeProfitPercent {
		return Decision{SignalTP, fmt.Sprintf("прибыль %.2f%% >= %.2f%%", favorable, cfg.TakeProfitPercent)}
	}

	// 7. TP1: взводит трейлинг на дистанции от текущей цены
	if !st.TP1Done && cfg.TP1Percent > 0 && favorable >= cfg.TP1Percent {
		armTrailing(pos, st, price, cfg.TrailingDistancePercent)
		return Decision{SignalTP1, fmt.Sprintf("прибыль %.2f%% >= TP1 %.2f%%", favorable, cfg.TP1Percent)}
	}

	// 8. TP2
	if st.TP1Done && !st.TP2Done && cfg.TP2Percent > 0 && favorable >= cfg.TP2Percent {
		return Decision{SignalTP2, fmt.Sprintf("прибыль %.2f%% >= TP2 %.2f%%", favorable, cfg.TP2Percent)}
	}

	// 9. Трейлинг: после TP1 (и TP2, если он настроен)
	if st.TP1Done && (cfg.TP2Percent <= 0 || st.TP2Done) && st.TrailPrice > 0 {
		if d := evalTrailing(pos, st, price, cfg.TrailingDistancePercent); d.Signal != SignalNone {
			return d
		}
	}

	// 10. Финальный полный тейк (независимо от частичных TP)
	if cfg.TakeProfitPercent > 0 && favorable >= cfg.TakeProfitPercent {
		return Decision{SignalTP, fmt.Sprintf("прибыль %.2f%% >= %.2f%%", favorable, cfg.TakeProfitPercent)}
	}

	// 11. Усреднение
	if needDCA(pos, st, adverse, now, cfg, features) {
		return Decision{SignalDCA, fmt.Sprintf("просадка %.2f%%, уровень %d", adverse, pos.DCACount)}
	}

	// 12. Мягкий стоп по времени: убыточная позиция пересидела лимит
	if cfg.SoftSLMinutes > 0 && elapsed >= time.Duration(cfg.SoftSLMinutes)*time.Minute && favorable < 0 {
		return Decision{SignalSoftSL, fmt.Sprintf("убыточна %.0f мин", elapsed.Minutes())}
	}

	// 13. Мягкий стоп по убытку
	if cfg.SoftSLPercent > 0 && adverse >= cfg.SoftSLPercent {
		return Decision{SignalSoftSL, fmt.Sprintf("убыток %.2f%% >= %.2f%%", adverse, cfg.SoftSLPercent)}
	}

	return Decision{}
}

// armBreakEven взводит трейлинг на уровне средней цены (безубыток)
func armBreakEven(pos *models.Position, st *models.ExitState, price float64) {
	st.TrailPrice = pos.AvgPrice
	st.BestPrice = price
	st.TP1Done = true
	st.Stage = models.StagePostTP1
}

// armTrailing взводит трейлинг на дистанции от текущей цены.
// Уровень зажимается так, чтобы не оказаться по невыгодную сторону средней.
func armTrailing(pos *models.Position, st *models.ExitState, price, distancePct float64) {
	st.BestPrice = price
	if pos.Side.IsLong() {
		st.TrailPrice = utils.Max(price*(1-distancePct/100), pos.AvgPrice)
	} else {
		st.TrailPrice = utils.Min(price*(1+distancePct/100), pos.AvgPrice)
	}
}

// evalTrailing обновляет лучшую цену и уровень трейлинга, проверяет пробой.
// Уровень двигается только в выгодную сторону и не регрессирует.
func evalTrailing(pos *models.Position, st *models.ExitState, price, distancePct float64) Decision {
	if pos.Side.IsLong() {
		if price > st.BestPrice {
			st.BestPrice = price
		}
		candidate := st.BestPrice * (1 - distancePct/100)
		if candidate > st.TrailPrice {
			st.TrailPrice = candidate
		}
		if st.TrailPrice < pos.AvgPrice {
			st.TrailPrice = pos.AvgPrice
		}
		if price <= st.TrailPrice {
			return Decision{SignalTrail, fmt.Sprintf("цена %.6g <= трейлинг %.6g", price, st.TrailPrice)}
		}
		return Decision{}
	}

	if price < st.BestPrice {
		st.BestPrice = price
	}
	candidate := st.BestPrice * (1 + distancePct/100)
	if candidate < st.TrailPrice {
		st.TrailPrice = candidate
	}
	if st.TrailPrice > pos.AvgPrice {
		st.TrailPrice = pos.AvgPrice
	}
	if price >= st.TrailPrice {
		return Decision{SignalTrail, fmt.Sprintf("цена %.6g >= трейлинг %.6g", price, st.TrailPrice)}
	}
	return Decision{}
}

// needDCA проверяет право на усреднение.
//
// Требуемый шаг растёт геометрически: base * (level+1) * mult^level.
// Любой включённый фильтр может запретить усреднение; отсутствие данных
// у фильтра трактуется как разрешение.
func needDCA(pos *models.Position, st *models.ExitState, adverse float64, now time.Time, cfg config.TradingConfig, features FeatureView) bool {
	level := pos.DCACount

	if cfg.MaxDCALevels <= 0 || level >= cfg.MaxDCALevels {
		return false
	}

	requiredStep := cfg.DCAStepPercent * float64(level+1) * math.Pow(cfg.DCAStepMultiplier, float64(level))
	if adverse < requiredStep {
		return false
	}

	// Не усредняемся в разогнавшийся убыток
	if cfg.MaxDCADrawdownPercent > 0 && adverse >= cfg.MaxDCADrawdownPercent {
		return false
	}

	// Минимальный интервал между усреднениями
	if cfg.DCAMinInterval > 0 && !st.LastDCATime.IsZero() && now.Sub(st.LastDCATime) < cfg.DCAMinInterval {
		return false
	}

	if features == nil {
		return true
	}

	// Тренд против позиции при сильном ADX
	if cfg.EnableDCAADXFilter {
		if adx, bullish, ok := features.ADX(cfg.ADXPeriod); ok && adx >= cfg.DCAADXThreshold {
			if pos.Side.IsLong() != bullish {
				return false
			}
		}
	}

	// Осциллятор у экстремума в пользу позиции - усреднение против разворота
	if cfg.EnableDCARSIFilter {
		if rsi, ok := features.RSI(cfg.RSIPeriod); ok {
			if pos.Side.IsLong() && rsi >= cfg.RSIOverbought {
				return false
			}
			if !pos.Side.IsLong() && rsi <= cfg.RSIOversold {
				return false
			}
		}
	}

	// Аномально широкий спред
	if cfg.EnableDCASpreadFilter {
		if z, ok := features.SpreadZ(); ok && z >= cfg.DCASpreadZThreshold {
			return false
		}
	}

	// Поток тейкеров против позиции
	if cfg.EnableDCAVBDFilter {
		if share, ok := features.BuyVolumeShare(); ok {
			if pos.Side.IsLong() && share <= 1-cfg.DCAVBDThreshold {
				return false
			}
			if !pos.Side.IsLong() && share >= cfg.DCAVBDThreshold {
				return false
			}
		}
	}

	// Тренд старшего таймфрейма против позиции
	if cfg.UseHTFFilter {
		if trend, ok := features.HTFTrend(); ok && trend != models.SideNone && trend != pos.Side {
			return false
		}
	}

	return true
}
