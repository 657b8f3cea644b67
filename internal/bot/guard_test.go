package bot

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"dcabot/internal/config"
)

func guardConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxOpenPositions:    8,
		TotalRiskCapPercent: 20.0,
	}
}

func TestAdmit_MaxPositions(t *testing.T) {
	g := NewAccountGuard(guardConfig())
	now := time.Now()

	for i := 0; i < 8; i++ {
		ok, deny := g.Admit(fmt.Sprintf("SYM%dUSDT", i), 1.0, now)
		if !ok {
			t.Fatalf("позиция %d отклонена: %s", i, deny)
		}
	}

	// Девятая позиция блокируется независимо от запаса риска
	ok, deny := g.Admit("NINEUSDT", 0.1, now)
	if ok {
		t.Fatal("девятая позиция допущена сверх лимита")
	}
	if deny != DenyMaxPositions {
		t.Errorf("ожидалась причина %q, получена %q", DenyMaxPositions, deny)
	}
}

func TestAdmit_RiskCap(t *testing.T) {
	g := NewAccountGuard(guardConfig())
	now := time.Now()

	if ok, _ := g.Admit("BTCUSDT", 12.0, now); !ok {
		t.Fatal("первая позиция отклонена")
	}
	if ok, _ := g.Admit("ETHUSDT", 7.5, now); !ok {
		t.Fatal("вторая позиция отклонена")
	}

	// 12 + 7.5 + 1 > 20 - не помещается
	ok, deny := g.Admit("SOLUSDT", 1.0, now)
	if ok {
		t.Fatal("позиция допущена сверх риск-капа")
	}
	if deny != DenyRiskCap {
		t.Errorf("ожидалась причина %q, получена %q", DenyRiskCap, deny)
	}

	// После освобождения место появляется
	g.Release("BTCUSDT")
	if ok, deny := g.Admit("SOLUSDT", 1.0, now); !ok {
		t.Errorf("после Release позиция отклонена: %s", deny)
	}
}

func TestIncrease(t *testing.T) {
	g := NewAccountGuard(guardConfig())
	now := time.Now()

	if ok, _ := g.Admit("BTCUSDT", 10.0, now); !ok {
		t.Fatal("позиция отклонена")
	}

	if !g.Increase("BTCUSDT", 5.0) {
		t.Error("прирост в пределах капа отклонён")
	}
	if g.Increase("BTCUSDT", 6.0) {
		t.Error("прирост сверх капа допущен")
	}
	// Незарегистрированный символ нарастить нельзя
	if g.Increase("ETHUSDT", 1.0) {
		t.Error("прирост для незарегистрированного символа допущен")
	}
}

func TestDecrease(t *testing.T) {
	g := NewAccountGuard(guardConfig())
	now := time.Now()

	if ok, _ := g.Admit("BTCUSDT", 2.0, now); !ok {
		t.Fatal("позиция отклонена")
	}
	if !g.Increase("BTCUSDT", 3.0) {
		t.Fatal("прирост отклонён")
	}

	// Откат возвращает учёт к значению до прироста
	g.Decrease("BTCUSDT", 3.0)
	if got := g.Snapshot().TotalRisk; got != 2.0 {
		t.Errorf("после отката ожидался риск 2.0, получен %.2f", got)
	}

	// Откат больше накопленного зажимается в ноль
	g.Decrease("BTCUSDT", 5.0)
	if got := g.Snapshot().TotalRisk; got != 0 {
		t.Errorf("риск ушёл в минус: %.2f", got)
	}

	// Незарегистрированный символ не трогается
	g.Decrease("ETHUSDT", 1.0)
	if got := g.Snapshot().TotalRisk; got != 0 {
		t.Errorf("откат незарегистрированного символа изменил учёт: %.2f", got)
	}
}

func TestAdmit_DailyTradesLimit(t *testing.T) {
	cfg := guardConfig()
	cfg.EnableDailyTradesGuard = true
	cfg.DailyTradesLimit = 2
	g := NewAccountGuard(cfg)
	now := time.Now()

	g.Admit("BTCUSDT", 1.0, now)
	g.Release("BTCUSDT")
	g.Admit("BTCUSDT", 1.0, now)
	g.Release("BTCUSDT")

	// Дневной счётчик не уменьшается при Release
	ok, deny := g.Admit("BTCUSDT", 1.0, now)
	if ok {
		t.Fatal("вход сверх дневного лимита сделок допущен")
	}
	if deny != DenyDailyTrades {
		t.Errorf("ожидалась причина %q, получена %q", DenyDailyTrades, deny)
	}

	// Новые сутки UTC сбрасывают счётчик
	nextDay := now.Add(25 * time.Hour)
	if ok, deny := g.Admit("BTCUSDT", 1.0, nextDay); !ok {
		t.Errorf("после границы суток вход отклонён: %s", deny)
	}
}

func TestDrawdownLock(t *testing.T) {
	cfg := guardConfig()
	cfg.EnableDailyDrawdownGuard = true
	cfg.DailyDrawdownPercent = 5.0
	g := NewAccountGuard(cfg)
	now := time.Now()

	// Первая проверка фиксирует equity начала дня
	g.CheckEquity(1000.0, now)

	g.RecordTradePnl(-30.0, now)
	if ok, _ := g.Admit("BTCUSDT", 1.0, now); !ok {
		t.Fatal("вход отклонён до достижения лимита просадки")
	}
	g.Release("BTCUSDT")

	g.RecordTradePnl(-25.0, now) // итого -55 = -5.5% от 1000
	ok, deny := g.Admit("BTCUSDT", 1.0, now)
	if ok {
		t.Fatal("вход допущен при замке по просадке")
	}
	if deny != DenyDrawdownLock {
		t.Errorf("ожидалась причина %q, получена %q", DenyDrawdownLock, deny)
	}

	// Замок держится до конца суток и снимается на границе
	nextDay := now.Add(25 * time.Hour)
	if ok, deny := g.Admit("BTCUSDT", 1.0, nextDay); !ok {
		t.Errorf("замок не снят на границе суток: %s", deny)
	}
}

func TestProfitLock(t *testing.T) {
	cfg := guardConfig()
	cfg.EnableDailyProfitGuard = true
	cfg.DailyProfitPercent = 3.0
	g := NewAccountGuard(cfg)
	now := time.Now()

	g.CheckEquity(1000.0, now)
	g.RecordTradePnl(35.0, now) // +3.5%

	ok, deny := g.Admit("BTCUSDT", 1.0, now)
	if ok {
		t.Fatal("вход допущен при замке по прибыли")
	}
	if deny != DenyProfitLock {
		t.Errorf("ожидалась причина %q, получена %q", DenyProfitLock, deny)
	}
}

func TestRestore_BypassesLimits(t *testing.T) {
	cfg := guardConfig()
	cfg.MaxOpenPositions = 1
	g := NewAccountGuard(cfg)
	now := time.Now()

	g.Admit("BTCUSDT", 1.0, now)

	// Найденная на бирже позиция регистрируется мимо лимитов
	g.Restore("ETHUSDT", 1.0)

	snap := g.Snapshot()
	if snap.OpenPositions != 2 {
		t.Errorf("ожидалось 2 позиции в учёте, получено %d", snap.OpenPositions)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	g := NewAccountGuard(guardConfig())
	g.Admit("BTCUSDT", 2.5, time.Now())

	snap := g.Snapshot()
	snap.RiskBySymbol["BTCUSDT"] = 99.0

	if got := g.Snapshot().RiskBySymbol["BTCUSDT"]; got != 2.5 {
		t.Errorf("снимок делит карту с guard: риск %v", got)
	}
}

func TestAdmit_Concurrent(t *testing.T) {
	cfg := guardConfig()
	cfg.MaxOpenPositions = 8
	cfg.TotalRiskCapPercent = 1000.0
	g := NewAccountGuard(cfg)
	now := time.Now()

	var wg sync.WaitGroup
	admitted := make(chan string, 64)

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sym := fmt.Sprintf("SYM%dUSDT", n)
			if ok, _ := g.Admit(sym, 1.0, now); ok {
				admitted <- sym
			}
		}(i)
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	if count != 8 {
		t.Errorf("при гонке допущено %d позиций вместо 8", count)
	}
	if snap := g.Snapshot(); snap.OpenPositions != 8 {
		t.Errorf("в учёте %d позиций вместо 8", snap.OpenPositions)
	}
}
