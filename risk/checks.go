package risk

import "fmt"

// Absolute floors that no configuration can lower.
const (
	MinEquityUSD   = 10.0
	MinExposureUSD = 10.0
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason is the message of the violation that denied the trade.
func (d Decision) Reason() string {
	if len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Msg
}

// MaxExposure is the margin ceiling for equity under cfg.
func MaxExposure(cfg GateConfig, equity float64) float64 {
	return equity * cfg.MaxExposurePercent / 100
}

// CanOpen validates a new position. Checks run in order and the first
// failure decides.
func CanOpen(cfg GateConfig, in GateInputs) Decision {
	d := Decision{Allowed: true}

	if in.Equity < MinEquityUSD {
		d.add("EQUITY_TOO_LOW",
			fmt.Sprintf("equity $%.2f below minimum $%.2f", in.Equity, MinEquityUSD))
		return d
	}

	if in.OpenPositions >= cfg.MaxPositions {
		d.add("TOO_MANY_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", in.OpenPositions, cfg.MaxPositions))
		return d
	}

	maxExposure := MaxExposure(cfg, in.Equity)
	if maxExposure < MinExposureUSD {
		d.add("EXPOSURE_LIMIT_TOO_LOW",
			fmt.Sprintf("max exposure $%.2f (%.2f%% of equity $%.2f) below minimum $%.2f",
				maxExposure, cfg.MaxExposurePercent, in.Equity, MinExposureUSD))
		return d
	}

	total := in.CurrentExposure + in.EstimatedMargin
	if total > maxExposure {
		d.add("EXPOSURE_EXCEEDED",
			fmt.Sprintf("exposure $%.2f + margin $%.2f = $%.2f exceeds max $%.2f (%.2f%% of equity $%.2f)",
				in.CurrentExposure, in.EstimatedMargin, total, maxExposure, cfg.MaxExposurePercent, in.Equity))
	}

	return d
}
