package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
)

// NormalizePeriod lowers a cart period to the units the gateway accepts.
// WEEK becomes DAY with the interval multiplied by 7, YEAR becomes MONTH
// with the interval multiplied by 12; DAY and MONTH pass through.
func NormalizePeriod(unit domain.PeriodUnit, interval int) (domain.PeriodUnit, int) {
	switch unit {
	case domain.PeriodUnitWeek:
		return domain.PeriodUnitDay, interval * 7
	case domain.PeriodUnitYear:
		return domain.PeriodUnitMonth, interval * 12
	default:
		return unit, interval
	}
}

// NextDue returns the instant one billing period after from. Units here are
// post-normalization, so only DAY and MONTH occur.
func NextDue(from time.Time, unit domain.PeriodUnit, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch unit {
	case domain.PeriodUnitMonth:
		return from.AddDate(0, interval, 0)
	default:
		return from.AddDate(0, 0, interval)
	}
}

// FirstDue returns when the first merchant-driven charge for a plan falls:
// the end of the trial when there is one, otherwise one period out.
func FirstDue(plan *domain.BillingPlan, from time.Time) time.Time {
	if plan.HasTrial() {
		switch plan.TrialUnit {
		case domain.PeriodUnitWeek:
			return from.AddDate(0, 0, 7*plan.TrialLength)
		case domain.PeriodUnitMonth:
			return from.AddDate(0, plan.TrialLength, 0)
		case domain.PeriodUnitYear:
			return from.AddDate(plan.TrialLength, 0, 0)
		default:
			return from.AddDate(0, 0, plan.TrialLength)
		}
	}
	return NextDue(from, plan.Unit, plan.Interval)
}

// Planner derives recurring billing parameters from cart line items
type Planner struct{}

// NewPlanner creates a billing planner
func NewPlanner() *Planner {
	return &Planner{}
}

// Derive scans the cart for subscription metadata and returns the billing
// plan, or nil when the cart has no subscription. A cart with exactly one
// unit of a single recurring product gets a full schedule; anything else
// (multiple subscriptions, quantity above one, or a mix with ordinary
// products) gets a bootstrap plan whose renewal timing is owned by the
// merchant-side scheduler.
func (p *Planner) Derive(items []domain.CartItem) *domain.BillingPlan {
	var subs []domain.CartItem
	ordinary := 0
	for _, item := range items {
		if item.Subscription {
			subs = append(subs, item)
		} else {
			ordinary++
		}
	}
	if len(subs) == 0 {
		return nil
	}

	// The eventual recurring amount is known in advance even when no funds
	// move up front (free trial) or when the schedule is merchant-driven.
	recurring := decimal.Zero
	for _, item := range subs {
		recurring = recurring.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if len(subs) > 1 || ordinary > 0 || subs[0].Quantity != 1 {
		return &domain.BillingPlan{
			Unit:            domain.PeriodUnitMonth,
			Interval:        1,
			RecurringAmount: recurring,
			Bootstrap:       true,
		}
	}

	item := subs[0]
	interval := item.Interval
	if interval < 1 {
		interval = 1
	}
	unit, interval := NormalizePeriod(item.Period, interval)

	plan := &domain.BillingPlan{
		Unit:             unit,
		Interval:         interval,
		TotalOccurrences: item.Length,
		RecurringAmount:  recurring,
		SignUpFee:        item.SignUpFee,
	}
	if item.TrialLength > 0 {
		plan.TrialLength = item.TrialLength
		plan.TrialUnit = item.TrialPeriod
	}
	return plan
}
