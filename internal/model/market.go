package model

import "github.com/shopspring/decimal"

// MarketToken is one outcome token (YES or NO) of a binary prediction market.
type MarketToken struct {
	TokenID string
	Outcome string // "Yes" or "No"
}

// Market describes a tradeable prediction market as returned by the
// discovery/market-lookup collaborator. A usable market has at least two
// tokens, with the first treated as YES and the second as NO.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	Tokens      []MarketToken
	EndDateISO  string
	NegRisk     bool
}

// YesToken returns the YES token ID, the first of Tokens per the bootstrap
// contract, and false if the market has no tokens.
func (m Market) YesToken() (string, bool) {
	if len(m.Tokens) < 1 {
		return "", false
	}
	return m.Tokens[0].TokenID, true
}

// NoToken returns the NO token ID, the second of Tokens.
func (m Market) NoToken() (string, bool) {
	if len(m.Tokens) < 2 {
		return "", false
	}
	return m.Tokens[1].TokenID, true
}

// OrderType distinguishes limit (GTC) from market (FOK) orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"  // treated as GTC
	OrderTypeMarket OrderType = "market" // treated as FOK
)

// OrderRequest is submitted to TradingAPI.PlaceOrder. Price for limit
// orders must lie in the open interval (0,1).
type OrderRequest struct {
	TokenID   string
	Side      Side
	Price     decimal.Decimal
	Size      decimal.Decimal
	OrderType OrderType
}

// Validate enforces the (0,1) open-interval price constraint for limit
// orders.
func (r OrderRequest) Validate() error {
	if r.OrderType == OrderTypeLimit {
		if !r.Price.IsPositive() || r.Price.GreaterThanOrEqual(One) {
			return errOutOfRange(r.Price)
		}
	}
	if !r.Size.IsPositive() {
		return errNonPositiveSize(r.Size)
	}
	return nil
}

// OrderResponse is the broker's reply to a placed order.
type OrderResponse struct {
	OrderID string
	Status  string
	Filled  decimal.Decimal
}

// AssetType distinguishes balance queries (e.g. collateral vs. a specific
// outcome token).
type AssetType string

const (
	AssetCollateral AssetType = "collateral"
)

// Balance is the live engine's account balance as reported by TradingAPI.
type Balance struct {
	AssetType AssetType
	Amount    decimal.Decimal
}
