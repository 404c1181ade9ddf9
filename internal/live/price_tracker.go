package live

import "github.com/shopspring/decimal"

type assetRef struct {
	conditionID string
	isYes       bool
}

// priceTracker maps asset_id -> (condition_id, side) and holds the last
// seen price per side per market. It is touched only by the owning
// engine's single dispatcher goroutine, so it carries no lock.
type priceTracker struct {
	assets  map[string]assetRef
	yesLast map[string]decimal.Decimal
	noLast  map[string]decimal.Decimal
}

func newPriceTracker() *priceTracker {
	return &priceTracker{
		assets:  make(map[string]assetRef),
		yesLast: make(map[string]decimal.Decimal),
		noLast:  make(map[string]decimal.Decimal),
	}
}

// register associates an asset ID with a market and side, and optionally
// seeds its last-known price (used during bootstrap).
func (t *priceTracker) register(assetID, conditionID string, isYes bool, seed decimal.Decimal) {
	t.assets[assetID] = assetRef{conditionID: conditionID, isYes: isYes}
	if isYes {
		t.yesLast[conditionID] = seed
	} else {
		t.noLast[conditionID] = seed
	}
}

// reset clears all tracked asset IDs and prices, used on market rotation.
func (t *priceTracker) reset() {
	t.assets = make(map[string]assetRef)
	t.yesLast = make(map[string]decimal.Decimal)
	t.noLast = make(map[string]decimal.Decimal)
}

// update records a new price for assetID and returns the market's current
// (yes, no) pair. ok is false when the asset ID is unknown or the
// complementary side has not yet been seeded.
func (t *priceTracker) update(assetID string, price decimal.Decimal) (conditionID string, yes, no decimal.Decimal, ok bool) {
	ref, known := t.assets[assetID]
	if !known {
		return "", decimal.Zero, decimal.Zero, false
	}
	if ref.isYes {
		t.yesLast[ref.conditionID] = price
	} else {
		t.noLast[ref.conditionID] = price
	}

	yesPrice, hasYes := t.yesLast[ref.conditionID]
	noPrice, hasNo := t.noLast[ref.conditionID]
	if !hasYes || !hasNo {
		return ref.conditionID, decimal.Zero, decimal.Zero, false
	}
	return ref.conditionID, yesPrice, noPrice, true
}
