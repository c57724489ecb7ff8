package fees

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Breakdown is the fee decomposition of a payment, in minor units.
type Breakdown struct {
	Total        int64
	PlatformFee  int64
	ProcessorFee int64
	NetToStore   int64
}

// Calculator computes platform and processor fees. All arithmetic goes
// through decimal so repeated small computations never drift the way
// float64 rounding would.
type Calculator struct {
	platformRate   decimal.Decimal
	processorRate  decimal.Decimal
	processorFixed int64
}

// NewCalculator takes rates in basis points (500 = 5%) and the processor's
// fixed per-charge fee in minor units.
func NewCalculator(platformRateBps, processorRateBps int, processorFixedFee int64) *Calculator {
	bps := decimal.NewFromInt(10000)
	return &Calculator{
		platformRate:   decimal.NewFromInt(int64(platformRateBps)).Div(bps),
		processorRate:  decimal.NewFromInt(int64(processorRateBps)).Div(bps),
		processorFixed: processorFixedFee,
	}
}

// Calculate computes the global fee breakdown for a payment total.
func (c *Calculator) Calculate(total int64) Breakdown {
	t := decimal.NewFromInt(total)
	platform := t.Mul(c.platformRate).Round(0).IntPart()
	processor := t.Mul(c.processorRate).Round(0).IntPart() + c.processorFixed

	return Breakdown{
		Total:        total,
		PlatformFee:  platform,
		ProcessorFee: processor,
		NetToStore:   total - platform - processor,
	}
}

// Split divides a global breakdown across stores proportionally to each
// store's share of the total. Per-store fees are derived from the global
// fee (globalFee * storeAmount / total), not recomputed independently, so
// the per-store fees sum exactly to the global fees: any rounding
// remainder is assigned to the largest share.
func (c *Calculator) Split(global Breakdown, shares map[string]int64) map[string]Breakdown {
	platform := Allocate(global.PlatformFee, shares)
	processor := Allocate(global.ProcessorFee, shares)

	out := make(map[string]Breakdown, len(shares))
	for storeID, amount := range shares {
		out[storeID] = Breakdown{
			Total:        amount,
			PlatformFee:  platform[storeID],
			ProcessorFee: processor[storeID],
			NetToStore:   amount - platform[storeID] - processor[storeID],
		}
	}
	return out
}

// Allocate distributes total across shares proportionally, assigning the
// rounding remainder to the largest share (ties broken by smallest key so
// the result is deterministic under redelivery).
func Allocate(total int64, shares map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(shares))
	if len(shares) == 0 {
		return out
	}

	var sum int64
	for _, amount := range shares {
		sum += amount
	}
	if sum == 0 {
		for storeID := range shares {
			out[storeID] = 0
		}
		return out
	}

	keys := make([]string, 0, len(shares))
	for storeID := range shares {
		keys = append(keys, storeID)
	}
	sort.Strings(keys)

	totalDec := decimal.NewFromInt(total)
	sumDec := decimal.NewFromInt(sum)

	var allocated int64
	largest := keys[0]
	for _, storeID := range keys {
		part := totalDec.
			Mul(decimal.NewFromInt(shares[storeID])).
			Div(sumDec).
			Round(0).
			IntPart()
		out[storeID] = part
		allocated += part
		if shares[storeID] > shares[largest] {
			largest = storeID
		}
	}

	out[largest] += total - allocated
	return out
}
