package risk

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/bridge/snapshot"
)

// Levels are protective stop and target prices for one position.
type Levels struct {
	SL decimal.Decimal
	TP decimal.Decimal
}

// ProtectiveLevels places the stop `stop` price units against the position
// and the target `target` units in its favour, rounded to digits. Levels
// the host already reports as non-zero are kept as they are.
func ProtectiveLevels(p snapshot.Position, stop, target float64, digits int32) Levels {
	open := decimal.NewFromFloat(p.OpenPrice)
	s := decimal.NewFromFloat(stop)
	t := decimal.NewFromFloat(target)

	var sl, tp decimal.Decimal
	if p.Type == snapshot.SideSell {
		sl, tp = open.Add(s), open.Sub(t)
	} else {
		sl, tp = open.Sub(s), open.Add(t)
	}

	if p.SL != 0 {
		sl = decimal.NewFromFloat(p.SL)
	}
	if p.TP != 0 {
		tp = decimal.NewFromFloat(p.TP)
	}
	return Levels{SL: sl.Round(digits), TP: tp.Round(digits)}
}
