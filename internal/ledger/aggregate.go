package ledger

import "github.com/alanyoungcy/optionsdesk/internal/domain"

// Aggregate rolls positions up into portfolio metrics. Unknown market values
// and P/L count as zero. Ties for top gainer or loser keep the position seen
// first.
func Aggregate(positions []domain.Position) domain.PortfolioMetrics {
	m := domain.PortfolioMetrics{TotalPositions: len(positions)}

	for _, p := range positions {
		if p.MarketValue != nil {
			m.TotalMarketValue += *p.MarketValue
		}
		m.TotalCostBasis += p.CostBasis
		if p.UnrealizedPL != nil {
			m.TotalUnrealizedPL += *p.UnrealizedPL
		}

		costBasis := p.CostBasis
		pct := UnrealizedPLPercent(p.UnrealizedPL, &costBasis)
		if pct == nil {
			continue
		}
		if m.TopGainer == nil || *pct > m.TopGainer.UnrealizedPLPercent {
			m.TopGainer = &domain.Mover{Ticker: p.Ticker, UnrealizedPLPercent: *pct}
		}
		if m.TopLoser == nil || *pct < m.TopLoser.UnrealizedPLPercent {
			m.TopLoser = &domain.Mover{Ticker: p.Ticker, UnrealizedPLPercent: *pct}
		}
	}

	if m.TotalCostBasis > 0 {
		m.TotalUnrealizedPLPercent = m.TotalUnrealizedPL / m.TotalCostBasis * 100
	}
	return m
}

// SummarizeTrades counts open and closed trades and sums realized P/L.
func SummarizeTrades(trades []domain.Trade) domain.AssociatedTrades {
	var s domain.AssociatedTrades
	for _, t := range trades {
		switch t.Status {
		case domain.TradeOpen:
			s.OpenCount++
		case domain.TradeClosed:
			s.ClosedCount++
			if t.ProfitLoss != nil {
				s.TotalProfitLoss += *t.ProfitLoss
			}
		}
	}
	return s
}
