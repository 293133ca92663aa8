package engine

import (
	"fmt"

	"mako/internal/gateway/notifier"
	"mako/internal/logger"
	"mako/internal/position"
	"mako/internal/store/gormstore"
)

func (e *Engine) notifyStart() {
	msg := notifier.StructuredMessage{
		Icon:  "🚀",
		Title: fmt.Sprintf("Mako started on %s", e.cfg.Trading.Symbol),
		Sections: []notifier.MessageSection{{
			Lines: []string{
				fmt.Sprintf("strategy: %s", e.strategyName()),
				fmt.Sprintf("interval: %s", e.cfg.Trading.Interval),
				fmt.Sprintf("state: %s", e.Snapshot().State),
			},
		}},
		Timestamp: e.nowFn(),
	}
	e.send(msg)
}

func (e *Engine) notifyOpen(pos *position.Position) {
	msg := notifier.StructuredMessage{
		Icon:  "📈",
		Title: fmt.Sprintf("Opened %s %s", pos.Side, pos.Symbol),
		Sections: []notifier.MessageSection{{
			Lines: []string{
				fmt.Sprintf("size: %.6f", pos.Size),
				fmt.Sprintf("entry: %.2f", pos.EntryPrice),
				fmt.Sprintf("stop: %.2f", pos.StopLoss),
				fmt.Sprintf("target: %.2f", pos.TakeProfit),
				fmt.Sprintf("r/r: %.2f", pos.RiskReward()),
				fmt.Sprintf("leverage: %dx", pos.Leverage),
			},
		}},
		Timestamp: e.nowFn(),
	}
	e.send(msg)
}

func (e *Engine) notifyClose(rec gormstore.TradeRecord) {
	icon := "✅"
	if rec.PnL < 0 {
		icon = "🔻"
	}
	e.mu.RLock()
	ledger := e.ledger
	e.mu.RUnlock()
	msg := notifier.StructuredMessage{
		Icon:  icon,
		Title: fmt.Sprintf("Closed %s %s (%s)", rec.Side, rec.Symbol, rec.ExitReason),
		Sections: []notifier.MessageSection{
			{
				Lines: []string{
					fmt.Sprintf("entry: %.2f exit: %.2f", rec.EntryPrice, rec.ExitPrice),
					fmt.Sprintf("pnl: %+.2f USDT", rec.PnL),
				},
			},
			{
				Title: "Today",
				Lines: []string{
					fmt.Sprintf("realized: %+.2f USDT", ledger.RealizedPnLToday),
					fmt.Sprintf("trades: %d win rate: %.0f%%", ledger.Trades, ledger.WinRate()*100),
				},
			},
		},
		Timestamp: e.nowFn(),
	}
	e.send(msg)
}

func (e *Engine) notifyHalt() {
	e.mu.RLock()
	ledger := e.ledger
	e.mu.RUnlock()
	msg := notifier.StructuredMessage{
		Icon:  "🛑",
		Title: "Trading halted: daily loss limit reached",
		Sections: []notifier.MessageSection{{
			Lines: []string{
				fmt.Sprintf("realized today: %+.2f USDT", ledger.RealizedPnLToday),
				fmt.Sprintf("start of day equity: %.2f USDT", ledger.StartOfDayEquity),
				"trading resumes at the next UTC day boundary",
			},
		}},
		Timestamp: e.nowFn(),
	}
	e.send(msg)
}

// notifyDailySummary is the stop message: today's ledger in one section.
func (e *Engine) notifyDailySummary() {
	e.mu.RLock()
	ledger := e.ledger
	e.mu.RUnlock()
	msg := notifier.StructuredMessage{
		Icon:  "🌙",
		Title: fmt.Sprintf("Mako stopped, summary for %s", ledger.Day),
		Sections: []notifier.MessageSection{{
			Title: "Today",
			Lines: []string{
				fmt.Sprintf("trades: %d (%dW / %dL)", ledger.Trades, ledger.Wins, ledger.Losses),
				fmt.Sprintf("win rate: %.0f%%", ledger.WinRate()*100),
				fmt.Sprintf("realized: %+.2f USDT", ledger.RealizedPnLToday),
				fmt.Sprintf("avg win: %.2f avg loss: %.2f", ledger.AvgWin(), ledger.AvgLoss()),
			},
		}},
		Timestamp: e.nowFn(),
	}
	e.send(msg)
}

func (e *Engine) send(msg notifier.StructuredMessage) {
	if err := e.notifier.SendText(msg.RenderMarkdown()); err != nil {
		logger.Warnf("engine: notification failed: %v", err)
	}
}
