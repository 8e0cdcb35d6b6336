package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/test/mocks"
)

type renewalFixture struct {
	svc       *RenewalService
	orderRepo *mocks.MockOrderRepository
	subRepo   *mocks.MockSubscriptionRepository
	processor *mocks.MockProcessorClient
}

func setupRenewalTest() *renewalFixture {
	f := &renewalFixture{
		orderRepo: &mocks.MockOrderRepository{},
		subRepo:   &mocks.MockSubscriptionRepository{},
		processor: &mocks.MockProcessorClient{},
	}
	f.svc = NewRenewalService(mocks.NewMockDBPort(), f.orderRepo, f.subRepo, f.processor, mocks.NewMockLogger())
	f.svc.now = func() time.Time { return time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) }
	return f
}

func parentOrder() *domain.Order {
	ref := "24-9-3001"
	return &domain.Order{
		ID:                   "order-1",
		OrderReference:       "Ref-abcde12345",
		Currency:             "GBP",
		TransactionReference: &ref,
		Status:               domain.SettlementStatusPaid,
	}
}

func monthlyState() *domain.SubscriptionState {
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return &domain.SubscriptionState{
		ParentOrderID:      "order-1",
		Unit:               domain.PeriodUnitMonth,
		Interval:           1,
		SubscriptionNumber: 2,
		AmountMinorUnits:   1999,
		NextDueAt:          &due,
	}
}

func TestChargeRenewalSuccess(t *testing.T) {
	f := setupRenewalTest()
	state := monthlyState()

	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(parentOrder(), nil)
	f.orderRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.AmountMinorUnits == 1999 && o.Status == domain.SettlementStatusInitiated && o.Currency == "GBP"
	})).Return(nil)
	f.processor.On("RecurringAuth", mock.Anything, mock.MatchedBy(func(req ports.RecurringAuthRequest) bool {
		return req.ParentTransactionReference == "24-9-3001" &&
			req.BaseAmountMinorUnits == 1999 &&
			req.SubscriptionNumber == 3
	})).Return(&ports.ProcessorResult{ErrorCode: "0", TransactionReference: "24-9-3002"}, nil)
	f.subRepo.On("IncrementCounter", mock.Anything, mock.Anything, "order-1", "", 2).Return(nil)
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(r ports.SettlementResult) bool {
		return r.Status == domain.SettlementStatusPaid && r.TransactionReference == "24-9-3002"
	})).Return(true, nil)
	f.subRepo.On("UpdateNextDue", mock.Anything, "order-1", "",
		time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)).Return(nil)

	charged, err := f.svc.ChargeRenewal(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, charged)
	f.subRepo.AssertExpectations(t)
	f.orderRepo.AssertExpectations(t)
}

func TestChargeRenewalDecline(t *testing.T) {
	f := setupRenewalTest()
	state := monthlyState()

	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(parentOrder(), nil)
	f.orderRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.processor.On("RecurringAuth", mock.Anything, mock.Anything).
		Return(&ports.ProcessorResult{ErrorCode: "70000", ErrorMessage: "Decline"}, nil)
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(r ports.SettlementResult) bool {
		return r.Status == domain.SettlementStatusOnHold
	})).Return(true, nil)

	charged, err := f.svc.ChargeRenewal(context.Background(), state)
	assert.False(t, charged)
	assert.True(t, domain.IsDecline(err))
	f.subRepo.AssertNotCalled(t, "IncrementCounter",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.subRepo.AssertNotCalled(t, "UpdateNextDue",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChargeRenewalFinalOccurrenceRetiresSchedule(t *testing.T) {
	f := setupRenewalTest()
	state := monthlyState()
	state.SubscriptionNumber = 11
	state.TotalOccurrences = 12

	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(parentOrder(), nil)
	f.orderRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.processor.On("RecurringAuth", mock.Anything, mock.Anything).
		Return(&ports.ProcessorResult{ErrorCode: "0", TransactionReference: "24-9-3012"}, nil)
	f.subRepo.On("IncrementCounter", mock.Anything, mock.Anything, "order-1", "", 11).Return(nil)
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.subRepo.On("ClearNextDue", mock.Anything, "order-1", "").Return(nil)

	charged, err := f.svc.ChargeRenewal(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, charged)
	f.subRepo.AssertNotCalled(t, "UpdateNextDue",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.subRepo.AssertCalled(t, "ClearNextDue", mock.Anything, "order-1", "")
}

func TestChargeRenewalCounterConflict(t *testing.T) {
	f := setupRenewalTest()
	state := monthlyState()

	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(parentOrder(), nil)
	f.orderRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.processor.On("RecurringAuth", mock.Anything, mock.Anything).
		Return(&ports.ProcessorResult{ErrorCode: "0", TransactionReference: "24-9-3002"}, nil)
	f.subRepo.On("IncrementCounter", mock.Anything, mock.Anything, "order-1", "", 2).
		Return(domain.ErrSubCounterConflict)

	_, err := f.svc.ChargeRenewal(context.Background(), state)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSubCounterConflict))
}

func TestChargeRenewalParentWithoutReference(t *testing.T) {
	f := setupRenewalTest()
	parent := parentOrder()
	parent.TransactionReference = nil
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(parent, nil)

	_, err := f.svc.ChargeRenewal(context.Background(), monthlyState())
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeOrderInvalidState))
	f.processor.AssertNotCalled(t, "RecurringAuth", mock.Anything, mock.Anything)
}

func TestChargeRenewalRetiresAbandonedCheckout(t *testing.T) {
	f := setupRenewalTest()
	parent := parentOrder()
	parent.Status = domain.SettlementStatusFailed
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(parent, nil)
	f.subRepo.On("ClearNextDue", mock.Anything, "order-1", "").Return(nil)

	charged, err := f.svc.ChargeRenewal(context.Background(), monthlyState())
	require.NoError(t, err)
	assert.False(t, charged)
	f.processor.AssertNotCalled(t, "RecurringAuth", mock.Anything, mock.Anything)
	f.subRepo.AssertCalled(t, "ClearNextDue", mock.Anything, "order-1", "")
}

func TestProcessDueRenewalsBatch(t *testing.T) {
	f := setupRenewalTest()
	asOf := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	healthy := monthlyState()
	done := monthlyState()
	done.ParentOrderID = "order-2"
	done.SubscriptionNumber = 12
	done.TotalOccurrences = 12

	f.subRepo.On("ListDue", mock.Anything, asOf, 50).
		Return([]*domain.SubscriptionState{healthy, done}, nil)
	f.subRepo.On("ClearNextDue", mock.Anything, "order-2", "").Return(nil)

	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(parentOrder(), nil)
	f.orderRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.processor.On("RecurringAuth", mock.Anything, mock.Anything).
		Return(&ports.ProcessorResult{ErrorCode: "0", TransactionReference: "24-9-3002"}, nil)
	f.subRepo.On("IncrementCounter", mock.Anything, mock.Anything, "order-1", "", 2).Return(nil)
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.subRepo.On("UpdateNextDue", mock.Anything, "order-1", "", mock.Anything).Return(nil)

	summary, err := f.svc.ProcessDueRenewals(context.Background(), asOf, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Due)
	assert.Equal(t, 1, summary.Charged)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
}
