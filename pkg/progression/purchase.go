package progression

// PurchaseRequest proposes spending Cost currency to raise Levels[Key] by one.
type PurchaseRequest struct {
	ID     string `json:"id,omitempty"`
	Player string `json:"player" validate:"required"`
	Key    Key    `json:"key" validate:"required"`
	Cost   int64  `json:"cost" validate:"gt=0"`
}

// RejectReason explains why the authority refused a purchase.
type RejectReason string

const (
	ReasonNone              RejectReason = ""
	ReasonInsufficientFunds RejectReason = "insufficient_funds"
	ReasonUnknownKey        RejectReason = "unknown_key"
	ReasonPriceMismatch     RejectReason = "price_mismatch"
	ReasonMaxLevel          RejectReason = "max_level"
)

// PurchaseResult is the authority's decision together with its state right after deciding.
type PurchaseResult struct {
	Accepted bool
	Reason   RejectReason
	Snapshot Snapshot
}
