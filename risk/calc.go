package risk

// Margin is the collateral a notional ties up at leverage.
func Margin(notional, leverage float64) float64 {
	if leverage <= 0 {
		return notional
	}
	return notional / leverage
}

// RealizedPnL for closing size units opened at entry and closed at exit.
func RealizedPnL(long bool, entry, exit, size float64) float64 {
	if long {
		return (exit - entry) * size
	}
	return (entry - exit) * size
}

// ROE is P&L as a percentage of margin; zero margin yields zero.
func ROE(pnl, margin float64) float64 {
	if margin == 0 {
		return 0
	}
	return pnl / margin * 100
}
