package bot

import (
	"context"
	"fmt"
	"time"

	"dcabot/internal/models"
	"dcabot/pkg/utils"
)

// hedge.go - переворот позиции хеджем
//
// Назначение:
// Вместо фиксации стопа по мягкому сигналу позиция закрывается
// и открывается противоположная: рынок ушёл против входа, движение
// отрабатывается в новую сторону.
//
// Ограничения:
// - Счётчик переворотов ограничен MaxHedges на цикл сделки
// - Опциональный трендовый фильтр: переворачиваемся только когда
//   ADX подтверждает движение в новую сторону
// - HedgeDelay даёт рынку время опровергнуть одиночный шумовой тик

// maybeHedge пытается перевернуть позицию по стоп-сигналу.
// Возвращает (false, nil), когда политика отклонила переворот -
// вызывающий код тогда закрывает позицию обычным путём.
func (e *SymbolEngine) maybeHedge(ctx context.Context, price float64, now time.Time) (bool, error) {
	if e.hedgeCount >= e.cfg.MaxHedges {
		e.log.Debug("лимит переворотов исчерпан", utils.Int("hedges", e.hedgeCount))
		return false, nil
	}

	newSide := e.pos.Side.Opposite()

	if e.cfg.EnableHedgeADXFilter && e.features != nil {
		if adx, bullish, ok := e.features.ADX(14); ok {
			trendMatches := (newSide.IsLong() && bullish) || (!newSide.IsLong() && !bullish)
			if adx < e.cfg.HedgeADXThreshold || !trendMatches {
				e.log.Debug("переворот отклонён трендовым фильтром",
					utils.Float64("adx", adx), utils.Bool("bullish", bullish))
				return false, nil
			}
		}
	}

	// Пауза против шумового тика: если цена вернулась - не переворачиваемся
	if e.cfg.HedgeDelay > 0 {
		timer := time.NewTimer(e.cfg.HedgeDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	hedgeQty, err := e.hedgeQty(ctx)
	if err != nil {
		return false, err
	}
	if hedgeQty <= 0 {
		// Объём хеджа меньше лота - обычное закрытие
		return false, nil
	}

	prevSide := e.pos.Side
	closeResult, err := e.exec.MarketOrder(ctx, e.symbol, prevSide.Opposite(), e.pos.Qty, price, true, "hedge-close")
	if err != nil {
		return false, fmt.Errorf("закрытие перед хеджем: %w", err)
	}

	closePrice := closeResult.AvgPrice
	if closePrice <= 0 {
		closePrice = price
	}
	pnl := utils.CalculatePNL(string(prevSide), e.pos.AvgPrice, closePrice, e.pos.Qty)
	closedPnl := e.pos.RealizedPnl + pnl

	// Сделка старого направления завершена
	e.guard.Release(e.symbol)
	e.guard.RecordTradePnl(closedPnl, now)
	RecordTrade(e.symbol, "HEDGE_FLIP", closedPnl)
	if e.trades != nil {
		rec := &models.TradeRecord{
			Symbol:    e.symbol,
			Side:      string(prevSide),
			Qty:       e.pos.Qty,
			Price:     closePrice,
			AvgEntry:  e.pos.AvgPrice,
			Pnl:       closedPnl,
			Reason:    "HEDGE_FLIP",
			DCACount:  e.pos.DCACount,
			CreatedAt: now,
		}
		if err := e.trades.SaveTrade(ctx, rec); err != nil {
			e.log.Warn("сделка не сохранена", utils.Err(err))
		}
	}

	e.pos.Reset()
	e.st.Reset()

	// Вход в противоположную сторону: допуск guard обязателен,
	// дневные блокировки распространяются и на хедж
	riskPct := e.cfg.InitialRiskPercent * e.cfg.HedgeSizeRatio
	admitted, deny := e.guard.Admit(e.symbol, riskPct, now)
	if !admitted {
		RecordDenied(deny)
		e.log.Warn("хедж не допущен, остаёмся вне рынка", utils.String("deny", string(deny)))
		return true, nil
	}

	openResult, err := e.exec.MarketOrder(ctx, e.symbol, newSide, hedgeQty, price, false, "hedge-open")
	if err != nil || openResult.Noop {
		e.guard.Release(e.symbol)
		if err != nil {
			return true, fmt.Errorf("открытие хеджа: %w", err)
		}
		return true, nil
	}

	e.pos.ApplyFill(newSide, openResult.FilledQty, openResult.AvgPrice, now)
	e.st.Reset()
	e.st.Stage = models.StageOpen
	e.hedgeCount++
	e.currentSL = 0
	e.armInitialStop(ctx, openResult.AvgPrice)

	HedgeFlipsTotal.WithLabelValues(e.symbol).Inc()
	e.log.Info("позиция перевёрнута хеджем",
		utils.Side(string(newSide)),
		utils.Qty(openResult.FilledQty),
		utils.Price(openResult.AvgPrice),
		utils.Int("hedge", e.hedgeCount))
	e.notify(models.NotificationTypeHedge, models.SeverityWarn,
		fmt.Sprintf("🔄 %s: переворот %s→%s #%d, %.6g @ %.6g, PNL закрытой %.2f USDT",
			e.symbol, prevSide, newSide, e.hedgeCount,
			openResult.FilledQty, openResult.AvgPrice, closedPnl))

	return true, nil
}

// hedgeQty рассчитывает объём переворота от текущего объёма позиции
func (e *SymbolEngine) hedgeQty(ctx context.Context) (float64, error) {
	raw := e.pos.Qty * e.cfg.HedgeSizeRatio
	if raw <= 0 {
		return 0, nil
	}
	return e.exec.SnapQty(ctx, e.symbol, raw)
}
