package bot

import "dcabot/internal/models"

// ValidStageTransitions определяет допустимые переходы между этапами выхода
var ValidStageTransitions = map[string][]string{
	models.StageFlat:    {models.StageOpen},
	models.StageOpen:    {models.StagePostTP1, models.StageFlat}, // Flat при полном закрытии до TP1
	models.StagePostTP1: {models.StagePostTP2, models.StageFlat},
	models.StagePostTP2: {models.StageFlat},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidStageTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StageInfo возвращает описание этапа для уведомлений и API
func StageInfo(s string) string {
	switch s {
	case models.StageFlat:
		return "Позиции нет"
	case models.StageOpen:
		return "Позиция открыта (ожидание TP1)"
	case models.StagePostTP1:
		return "TP1 исполнен, трейлинг взведён"
	case models.StagePostTP2:
		return "TP2 исполнен, остаток ведётся трейлингом"
	default:
		return "Неизвестный этап"
	}
}

// HasOpenPosition возвращает true если на этом этапе есть открытая позиция
func HasOpenPosition(s string) bool {
	return s == models.StageOpen || s == models.StagePostTP1 || s == models.StagePostTP2
}
