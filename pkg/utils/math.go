package utils

import (
	"math"
)

// math.go - математические утилиты для управления позициями
//
// Назначение:
// Вспомогательные математические функции для торговых операций.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - SnapQty: приведение объёма к шагу лота биржи
// - PctChange: процентное изменение цены относительно опорной
// - CalculatePNL: прибыль/убыток по позиции
// - SoftStopPrice: расчёт цены мягкого стопа от средней цены входа

// SnapQty приводит объём ВНИЗ к ближайшему кратному шага лота.
//
// Используется перед отправкой любого ордера: биржа отклоняет объёмы,
// не кратные шагу инструмента. Округление вниз гарантирует, что мы
// не превысим доступные средства.
//
// Параметры:
//   - qty: исходный объём в монетах актива
//   - step: минимальный шаг изменения объёма на бирже
//
// Возвращает:
//   - Объём, кратный step
//   - Если step <= 0, возвращает исходный объём
//   - Если qty меньше одного шага (или отрицателен/NaN), возвращает 0
//
// Примеры:
//   - SnapQty(0.1234, 0.01) = 0.12
//   - SnapQty(1.999, 0.01) = 1.99
//   - SnapQty(0.0004, 0.001) = 0
func SnapQty(qty, step float64) float64 {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty <= 0 {
		return 0
	}
	if step <= 0 {
		return qty
	}
	snapped := math.Floor(qty/step) * step
	if snapped < 0 {
		return 0
	}
	return snapped
}

// SnapQtyUp приводит объём ВВЕРХ к ближайшему кратному шага лота.
//
// Используется когда нужно гарантировать минимальный объём (например, minQty).
func SnapQtyUp(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Ceil(qty/step) * step
}

// PctChange возвращает процентное изменение цены относительно опорной.
//
// Формула:
//
//	Изменение (%) = ((P_текущая - P_опорная) / P_опорная) × 100
//
// Знак сохраняется: падение цены даёт отрицательное значение.
// Все пороги стратегии (стопы, тейки, шаги усреднения) сравниваются
// именно с этой величиной.
//
// Параметры:
//   - current: текущая рыночная цена
//   - reference: опорная цена (обычно средняя цена входа)
//
// Возвращает:
//   - Изменение в процентах (например, -2.1 означает -2.1%)
//   - Если reference <= 0, возвращает 0
//
// Примеры:
//   - PctChange(97.9, 100.0) = -2.1
//   - PctChange(101.7, 100.0) = 1.7
func PctChange(current, reference float64) float64 {
	if reference <= 0 {
		return 0
	}
	return (current - reference) / reference * 100
}

// CalculatePNL расчитывает прибыль/убыток по позиции.
//
// Формулы:
//   - Buy  PNL = (P_close - P_entry) × qty
//   - Sell PNL = (P_entry - P_close) × qty
//
// Параметры:
//   - side: "Buy" или "Sell" (направление позиции)
//   - entryPrice: средняя цена входа
//   - currentPrice: текущая/выходная цена
//   - quantity: объём позиции
//
// Возвращает:
//   - PNL в валюте котировки (обычно USDT)
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}

	switch side {
	case "Buy":
		// Лонг: прибыль если цена выросла
		return (currentPrice - entryPrice) * quantity
	case "Sell":
		// Шорт: прибыль если цена упала
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// SoftStopPrice возвращает цену мягкого стопа, отстоящую от средней цены
// входа на pct процентов в неблагоприятную сторону.
//
// Параметры:
//   - avgPrice: средняя цена входа
//   - pct: отступ в процентах (положительное число)
//   - isLong: true для лонга (стоп ниже входа), false для шорта (выше)
func SoftStopPrice(avgPrice, pct float64, isLong bool) float64 {
	if avgPrice <= 0 || pct <= 0 {
		return 0
	}
	if isLong {
		return avgPrice * (1 - pct/100)
	}
	return avgPrice * (1 + pct/100)
}

// ClampStop прижимает цену стопа к допустимой стороне от текущей цены.
//
// Биржа отклоняет стоп, оказавшийся по неправильную сторону от рынка.
// Для лонга стоп должен быть ниже текущей цены, для шорта - выше;
// при нарушении стоп смещается на 0.1% от текущей цены.
//
// Параметры:
//   - stop: желаемая цена стопа
//   - price: текущая рыночная цена
//   - isLong: направление позиции
func ClampStop(stop, price float64, isLong bool) float64 {
	if price <= 0 {
		return stop
	}
	if isLong {
		return math.Min(stop, price*0.999)
	}
	return math.Max(stop, price*1.001)
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает минимум из двух чисел.
func Min(a, b float64) float64 {
	return math.Min(a, b)
}

// Max возвращает максимум из двух чисел.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
