package compound

import (
	"fmt"
	"sort"

	"github.com/NeuralTrust/TrustRail/pkg/types"
)

// Band is an inclusive certainty range mapped to a decision.
type Band struct {
	From int `mapstructure:"from" json:"from"`
	To   int `mapstructure:"to" json:"to"`
}

// Bands partitions the certainty scale. Construction enforces that the
// three ranges are disjoint, contiguous and cover 0..100 exactly, so a
// total always lands in exactly one band and ties are impossible.
type Bands struct {
	Allow Band `mapstructure:"allow" json:"allow"`
	Warn  Band `mapstructure:"warn" json:"warn"`
	Block Band `mapstructure:"block" json:"block"`
}

func NewBands(allow, warn, block Band) (Bands, error) {
	b := Bands{Allow: allow, Warn: warn, Block: block}
	return b, b.validate()
}

func (b Bands) validate() error {
	type labeled struct {
		name string
		band Band
	}
	bands := []labeled{
		{name: "allow", band: b.Allow},
		{name: "warn", band: b.Warn},
		{name: "block", band: b.Block},
	}

	for _, lb := range bands {
		if lb.band.From > lb.band.To {
			return fmt.Errorf("%s band [%d,%d] is inverted", lb.name, lb.band.From, lb.band.To)
		}
		if lb.band.From < 0 || lb.band.To > 100 {
			return fmt.Errorf("%s band [%d,%d] is outside 0..100", lb.name, lb.band.From, lb.band.To)
		}
	}

	sort.Slice(bands, func(i, j int) bool { return bands[i].band.From < bands[j].band.From })

	if bands[0].band.From != 0 {
		return fmt.Errorf("bands leave 0..%d uncovered", bands[0].band.From-1)
	}
	for i := 1; i < len(bands); i++ {
		prev, cur := bands[i-1], bands[i]
		if cur.band.From <= prev.band.To {
			return fmt.Errorf("%s band [%d,%d] overlaps %s band [%d,%d]",
				cur.name, cur.band.From, cur.band.To, prev.name, prev.band.From, prev.band.To)
		}
		if cur.band.From != prev.band.To+1 {
			return fmt.Errorf("bands leave %d..%d uncovered", prev.band.To+1, cur.band.From-1)
		}
	}
	if last := bands[len(bands)-1].band; last.To != 100 {
		return fmt.Errorf("bands leave %d..100 uncovered", last.To+1)
	}
	return nil
}

// DecisionFor maps a total certainty to its band's decision. Totals are
// clamped to the scale first.
func (b Bands) DecisionFor(total int) types.Decision {
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	switch {
	case total >= b.Block.From && total <= b.Block.To:
		return types.DecisionBlock
	case total >= b.Warn.From && total <= b.Warn.To:
		return types.DecisionWarn
	default:
		return types.DecisionAllow
	}
}
