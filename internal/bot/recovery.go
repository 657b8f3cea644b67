package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dcabot/internal/models"
	"dcabot/pkg/utils"
)

// recovery.go - восстановление движка после перезапуска процесса
//
// Функции:
// - Обнаружение открытой позиции на бирже и восстановление ledger
// - Регистрация найденной позиции в guard без проверки лимитов
// - Чистка подвисших ордеров: остаётся не более одного валидного
//   reduce-only ордера, остальные отменяются
//
// Состояние трейлинга и флаги TP1/TP2 после рестарта не восстанавливаются:
// позиция ведётся как свежеоткрытая от фактической средней цены биржи.

// restore опрашивает биржу и при наличии позиции восстанавливает
// внутреннее состояние движка.
func (e *SymbolEngine) restore(ctx context.Context) error {
	info, err := e.venue.GetPosition(ctx, e.symbol)
	if err != nil {
		return err
	}

	if info == nil || info.Size <= 0 {
		e.pos.Reset()
		e.st.Reset()
		return e.purgeStaleOrders(ctx, false)
	}

	side := models.SideBuy
	if !strings.EqualFold(info.Side, "Buy") {
		side = models.SideSell
	}

	e.pos.Reset()
	e.pos.ApplyFill(side, info.Size, info.AvgPrice, time.Now())
	e.st.Reset()
	e.st.Stage = models.StageOpen
	if info.StopLoss > 0 {
		e.currentSL = info.StopLoss
	}

	e.guard.Restore(e.symbol, e.cfg.InitialRiskPercent)

	e.log.Info("позиция восстановлена с биржи",
		utils.Side(string(side)),
		utils.Qty(info.Size),
		utils.Price(info.AvgPrice))
	e.notify(models.NotificationTypeRestart, models.SeverityWarn,
		fmt.Sprintf("♻️ %s: после рестарта найдена позиция %s %.6g @ %.6g, ведение продолжено",
			e.symbol, side, info.Size, info.AvgPrice))

	return e.purgeStaleOrders(ctx, true)
}

// purgeStaleOrders отменяет подвисшие ордера прошлой сессии.
// При открытой позиции один reduce-only ордер сохраняется
// (вероятный тейк прошлой сессии), всё остальное отменяется.
func (e *SymbolEngine) purgeStaleOrders(ctx context.Context, keepOneReduceOnly bool) error {
	orders, err := e.venue.GetOpenOrders(ctx, e.symbol)
	if err != nil {
		return err
	}

	kept := false
	for _, ord := range orders {
		if keepOneReduceOnly && ord.ReduceOnly && !kept {
			kept = true
			e.log.Info("оставлен reduce-only ордер прошлой сессии",
				utils.OrderID(ord.OrderID))
			continue
		}
		if err := e.exec.CancelOrder(ctx, e.symbol, ord.OrderID); err != nil {
			e.log.Warn("не удалось отменить подвисший ордер",
				utils.OrderID(ord.OrderID), utils.Err(err))
			continue
		}
		e.log.Info("отменён подвисший ордер", utils.OrderID(ord.OrderID))
	}
	return nil
}
