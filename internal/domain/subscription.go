package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodUnit is a recurring billing period unit. The gateway only accepts
// DAY and MONTH; WEEK and YEAR exist on cart items and are normalized away
// before a schedule is emitted.
type PeriodUnit string

const (
	PeriodUnitDay   PeriodUnit = "DAY"
	PeriodUnitWeek  PeriodUnit = "WEEK"
	PeriodUnitMonth PeriodUnit = "MONTH"
	PeriodUnitYear  PeriodUnit = "YEAR"
)

// BillingPlan is the derived, read-only schedule for a single-subscription
// cart. A nil plan means the cart has no subscription; a plan with
// Bootstrap set means the gateway is given a placeholder schedule and the
// merchant-side scheduler owns all renewal timing.
type BillingPlan struct {
	RecurringAmount  decimal.Decimal `json:"recurring_amount"` // per period, major units
	SignUpFee        decimal.Decimal `json:"sign_up_fee"`
	Unit             PeriodUnit      `json:"unit"`
	TrialUnit        PeriodUnit      `json:"trial_unit"`
	Interval         int             `json:"interval"`
	TotalOccurrences int             `json:"total_occurrences"` // 0 = unbounded
	TrialLength      int             `json:"trial_length"`      // 0 = no trial
	Bootstrap        bool            `json:"bootstrap"`
}

// HasTrial returns true when the initial authorization must defer capture
// until the trial ends (ACCOUNTCHECK instead of AUTH).
func (p *BillingPlan) HasTrial() bool {
	return p.TrialLength > 0
}

// SubscriptionState is the persisted renewal bookkeeping attached to a
// parent order. SubscriptionNumber is the monotonic counter the gateway
// uses to sequence recurring charges; it starts at 1 on the initiating
// order and only moves forward on a successful renewal.
type SubscriptionState struct {
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	NextDueAt          *time.Time `json:"next_due_at"`
	ParentOrderID      string     `json:"parent_order_id"`
	ItemKey            string     `json:"item_key"` // "" for single-subscription carts
	Unit               PeriodUnit `json:"unit"`
	Interval           int        `json:"interval"`
	TotalOccurrences   int        `json:"total_occurrences"`
	SubscriptionNumber int        `json:"subscription_number"`
	AmountMinorUnits   int64      `json:"amount_minor_units"`
}

// CartItem is the slice of line-item data the billing planner inspects
type CartItem struct {
	Price        decimal.Decimal `json:"price"`
	SignUpFee    decimal.Decimal `json:"sign_up_fee"`
	Period       PeriodUnit      `json:"period"`
	TrialPeriod  PeriodUnit      `json:"trial_period"`
	Quantity     int             `json:"quantity"`
	Interval     int             `json:"interval"`
	Length       int             `json:"length"` // total occurrences, 0 = unbounded
	TrialLength  int             `json:"trial_length"`
	Subscription bool            `json:"subscription"`
}
