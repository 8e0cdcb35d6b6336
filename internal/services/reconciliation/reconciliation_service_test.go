package reconciliation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/test/mocks"
)

type mockCardVault struct {
	mock.Mock
}

func (m *mockCardVault) Save(ctx context.Context, customerID, transactionReference, maskedPAN, paymentType string) (*domain.SavedCard, error) {
	args := m.Called(ctx, customerID, transactionReference, maskedPAN, paymentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SavedCard), args.Error(1)
}

type reconFixture struct {
	svc       *Service
	orderRepo *mocks.MockOrderRepository
	processor *mocks.MockProcessorClient
	vault     *mockCardVault
}

func setupReconTest() *reconFixture {
	f := &reconFixture{
		orderRepo: &mocks.MockOrderRepository{},
		processor: &mocks.MockProcessorClient{},
		vault:     &mockCardVault{},
	}
	f.svc = NewService(mocks.NewMockDBPort(), f.orderRepo, f.processor, f.vault, mocks.NewMockLogger())
	return f
}

func pendingOrder() *domain.Order {
	customer := "cust-1"
	return &domain.Order{
		ID:               "order-1",
		OrderReference:   "Ref-abcde12345",
		CustomerID:       &customer,
		Currency:         "GBP",
		AmountMinorUnits: 1999,
		Status:           domain.SettlementStatusAuthPending,
		Processing:       domain.ProcessingNone,
	}
}

func confirmedQuery(settleStatus string) *ports.ProcessorResult {
	return &ports.ProcessorResult{
		ErrorCode:    "0",
		ErrorMessage: "Ok",
		Records: []map[string]interface{}{{
			"errorcode":              "0",
			"transactionreference":   "24-9-3001",
			"settlestatus":           settleStatus,
			"maskedpan":              "411111######1111",
			"paymenttypedescription": "VISA",
		}},
	}
}

func TestCallbackConfirmedSuccess(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)
	f.processor.On("TransactionQuery", mock.Anything, "24-9-3001", "Ref-abcde12345").
		Return(confirmedQuery("0"), nil)
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, "order-1",
		mock.MatchedBy(func(r ports.SettlementResult) bool {
			return r.Status == domain.SettlementStatusPaid && r.TransactionReference == "24-9-3001"
		})).Return(true, nil)
	f.processor.On("TransactionUpdate", mock.Anything, "24-9-3001", "Ref-abcde12345").
		Return(&ports.ProcessorResult{ErrorCode: "0"}, nil)

	settled := pendingOrder()
	settled.Status = domain.SettlementStatusPaid
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(settled, nil)

	outcome, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference:       "Ref-abcde12345",
		TransactionReference: "24-9-3001",
		ErrorCode:            "0",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Settled)
	assert.False(t, outcome.Declined)
	assert.Equal(t, domain.SettlementStatusPaid, outcome.Order.Status)
	f.processor.AssertCalled(t, "TransactionUpdate", mock.Anything, "24-9-3001", "Ref-abcde12345")
}

func TestCallbackDeclineSkipsQuery(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)

	outcome, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference:       "Ref-abcde12345",
		TransactionReference: "24-9-3001",
		ErrorCode:            "70000",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Declined)
	assert.Equal(t, "70000", outcome.ErrorCode)
	f.processor.AssertNotCalled(t, "TransactionQuery", mock.Anything, mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallbackDeclineRuleWinsOverSuccessRule(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)

	outcome, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference:       "Ref-abcde12345",
		TransactionReference: "24-9-3001",
		ErrorCode:            "0",
		Rules:                []string{domain.RuleSuccess, domain.RuleDecline},
	})
	require.NoError(t, err)
	assert.True(t, outcome.Declined)
	f.processor.AssertNotCalled(t, "TransactionQuery", mock.Anything, mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallbackUnconfirmedSuccessDeclines(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)
	f.processor.On("TransactionQuery", mock.Anything, "24-9-3001", "Ref-abcde12345").
		Return(&ports.ProcessorResult{ErrorCode: "0", ErrorMessage: "Ok"}, nil) // no records

	outcome, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference:       "Ref-abcde12345",
		TransactionReference: "24-9-3001",
		ErrorCode:            "0",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Declined)
	f.orderRepo.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallbackMissingReferenceDeclines(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)

	outcome, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference: "Ref-abcde12345",
		ErrorCode:      "0", // claims success but carries no reference
	})
	require.NoError(t, err)
	assert.True(t, outcome.Declined)
	f.processor.AssertNotCalled(t, "TransactionQuery", mock.Anything, mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallbackSuspendedSettlementGoesOnHold(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)
	f.processor.On("TransactionQuery", mock.Anything, "24-9-3001", "Ref-abcde12345").
		Return(confirmedQuery("2"), nil)
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, "order-1",
		mock.MatchedBy(func(r ports.SettlementResult) bool {
			return r.Status == domain.SettlementStatusOnHold
		})).Return(true, nil)
	f.processor.On("TransactionUpdate", mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.ProcessorResult{ErrorCode: "0"}, nil)

	held := pendingOrder()
	held.Status = domain.SettlementStatusOnHold
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(held, nil)

	outcome, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference:       "Ref-abcde12345",
		TransactionReference: "24-9-3001",
		ErrorCode:            "0",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusOnHold, outcome.Order.Status)
}

func TestCallbackAlreadySettledIsIdempotent(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()
	order.Status = domain.SettlementStatusPaid

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)

	outcome, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference:       "Ref-abcde12345",
		TransactionReference: "24-9-3001",
		ErrorCode:            "0",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Settled)
	f.processor.AssertNotCalled(t, "TransactionQuery", mock.Anything, mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCallbackVaultsCardWhenRequested(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()
	order.SaveCardRequested = true

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)
	f.processor.On("TransactionQuery", mock.Anything, "24-9-3001", "Ref-abcde12345").
		Return(confirmedQuery("0"), nil)
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.vault.On("Save", mock.Anything, "cust-1", "24-9-3001", "411111######1111", "VISA").
		Return(&domain.SavedCard{ID: "card-1"}, nil)
	f.processor.On("TransactionUpdate", mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.ProcessorResult{ErrorCode: "0"}, nil)
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(order, nil)

	_, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference:       "Ref-abcde12345",
		TransactionReference: "24-9-3001",
		ErrorCode:            "0",
	})
	require.NoError(t, err)
	f.vault.AssertExpectations(t)
}

func TestSecondChannelSkipsSideEffects(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()
	order.SaveCardRequested = true

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)
	f.processor.On("TransactionQuery", mock.Anything, "24-9-3001", "Ref-abcde12345").
		Return(confirmedQuery("0"), nil)
	// The notification channel won the race between load and write
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(order, nil)

	_, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference:       "Ref-abcde12345",
		TransactionReference: "24-9-3001",
		ErrorCode:            "0",
	})
	require.NoError(t, err)
	f.vault.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.processor.AssertNotCalled(t, "TransactionUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func successNotification() *domain.NotificationEvent {
	return &domain.NotificationEvent{
		Fields: []domain.NotificationField{
			{Key: "errorcode", Value: "0"},
			{Key: "orderreference", Value: "Ref-abcde12345"},
			{Key: "transactionreference", Value: "24-9-3001"},
			{Key: "settlestatus", Value: "0"},
			{Key: "maskedpan", Value: "411111######1111"},
			{Key: "paymenttypedescription", Value: "VISA"},
		},
	}
}

func TestNotificationSettlesOrder(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, "order-1",
		mock.MatchedBy(func(r ports.SettlementResult) bool {
			return r.Status == domain.SettlementStatusPaid &&
				r.TransactionReference == "24-9-3001" &&
				r.TransactionData["maskedpan"] == "411111######1111"
		})).Return(true, nil)
	f.processor.On("TransactionUpdate", mock.Anything, "24-9-3001", "Ref-abcde12345").
		Return(&ports.ProcessorResult{ErrorCode: "0"}, nil)

	err := f.svc.HandleNotification(context.Background(), successNotification())
	require.NoError(t, err)
	// Notifications are authenticated upstream; no confirmation query needed
	f.processor.AssertNotCalled(t, "TransactionQuery", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotificationReleasesOnHoldOrder(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()
	order.Status = domain.SettlementStatusOnHold
	order.Processing = domain.ProcessingComplete

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, "order-1",
		mock.MatchedBy(func(r ports.SettlementResult) bool {
			return r.Status == domain.SettlementStatusPaid && r.TransactionReference == "24-9-3001"
		})).Return(true, nil)
	f.processor.On("TransactionUpdate", mock.Anything, "24-9-3001", "Ref-abcde12345").
		Return(&ports.ProcessorResult{ErrorCode: "0"}, nil)

	err := f.svc.HandleNotification(context.Background(), successNotification())
	require.NoError(t, err)
	f.orderRepo.AssertCalled(t, "MarkSettled", mock.Anything, mock.Anything, "order-1", mock.Anything)
}

func TestCallbackDeclineDoesNotBlockNotification(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)

	outcome, err := f.svc.HandleCallback(context.Background(), CallbackInput{
		OrderReference: "Ref-abcde12345",
		ErrorCode:      "70000",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Declined)
	f.orderRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)

	// The order is untouched, so a later authenticated success still settles
	f.orderRepo.On("MarkSettled", mock.Anything, mock.Anything, "order-1",
		mock.MatchedBy(func(r ports.SettlementResult) bool {
			return r.Status == domain.SettlementStatusPaid
		})).Return(true, nil)
	f.processor.On("TransactionUpdate", mock.Anything, "24-9-3001", "Ref-abcde12345").
		Return(&ports.ProcessorResult{ErrorCode: "0"}, nil)

	err = f.svc.HandleNotification(context.Background(), successNotification())
	require.NoError(t, err)
	f.orderRepo.AssertCalled(t, "MarkSettled", mock.Anything, mock.Anything, "order-1", mock.Anything)
}

func TestNotificationDeclineFailsOrder(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)
	f.orderRepo.On("MarkFailed", mock.Anything, "order-1", mock.Anything).Return(nil)

	event := successNotification()
	event.Fields[0].Value = "70000"

	err := f.svc.HandleNotification(context.Background(), event)
	require.NoError(t, err)
	f.orderRepo.AssertCalled(t, "MarkFailed", mock.Anything, "order-1", mock.Anything)
}

func TestNotificationUnknownOrder(t *testing.T) {
	f := setupReconTest()
	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").
		Return(nil, domain.ErrOrderNotFound)

	err := f.svc.HandleNotification(context.Background(), successNotification())
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeNotifyUnknownOrder))
}

func TestNotificationZeroTotalDiscarded(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()
	order.AmountMinorUnits = 0

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)

	err := f.svc.HandleNotification(context.Background(), successNotification())
	require.NoError(t, err)
	f.orderRepo.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotificationAlreadySettledIsIdempotent(t *testing.T) {
	f := setupReconTest()
	order := pendingOrder()
	order.Status = domain.SettlementStatusPaid

	f.orderRepo.On("GetByOrderReference", mock.Anything, "Ref-abcde12345").Return(order, nil)

	err := f.svc.HandleNotification(context.Background(), successNotification())
	require.NoError(t, err)
	f.orderRepo.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func paidOrder() *domain.Order {
	order := pendingOrder()
	ref := "24-9-3001"
	order.Status = domain.SettlementStatusPaid
	order.TransactionReference = &ref
	return order
}

func TestRefundRequiresPrivilegedActor(t *testing.T) {
	f := setupReconTest()

	err := f.svc.Refund(context.Background(), domain.Actor{ID: "u1", Role: domain.RoleCustomer},
		"order-1", decimal.NewFromFloat(5))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAuthzDenied))
	f.processor.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
}

func TestRefundRejectsUnpaidOrder(t *testing.T) {
	f := setupReconTest()
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(pendingOrder(), nil)

	err := f.svc.Refund(context.Background(), domain.Actor{ID: "m1", Role: domain.RoleManager},
		"order-1", decimal.NewFromFloat(5))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeOrderInvalidState))
}

func TestRefundRejectsExcessiveAmount(t *testing.T) {
	f := setupReconTest()
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(paidOrder(), nil)

	err := f.svc.Refund(context.Background(), domain.Actor{ID: "m1", Role: domain.RoleManager},
		"order-1", decimal.NewFromFloat(99.99))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationAmountInvalid))
}

func TestRefundSuccessAppendsNote(t *testing.T) {
	f := setupReconTest()
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(paidOrder(), nil)
	f.processor.On("Refund", mock.Anything, mock.MatchedBy(func(req ports.RefundRequest) bool {
		return req.ParentTransactionReference == "24-9-3001" && req.BaseAmountMinorUnits == 1999
	})).Return(&ports.ProcessorResult{ErrorCode: "0", TransactionReference: "24-9-4001"}, nil)
	f.orderRepo.On("AppendNote", mock.Anything, "order-1", mock.MatchedBy(func(note string) bool {
		return note != ""
	})).Return(nil)

	err := f.svc.Refund(context.Background(), domain.Actor{ID: "m1", Role: domain.RoleManager},
		"order-1", decimal.NewFromFloat(19.99))
	require.NoError(t, err)
	f.orderRepo.AssertExpectations(t)
}

func TestRefundGatewayDecline(t *testing.T) {
	f := setupReconTest()
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(paidOrder(), nil)
	f.processor.On("Refund", mock.Anything, mock.Anything).
		Return(&ports.ProcessorResult{ErrorCode: "60022", ErrorMessage: "Declined"}, nil)

	err := f.svc.Refund(context.Background(), domain.Actor{ID: "a1", Role: domain.RoleAdmin},
		"order-1", decimal.NewFromFloat(5))
	assert.True(t, domain.IsDecline(err))
	f.orderRepo.AssertNotCalled(t, "AppendNote", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefundUnauthorizedCredentialsPropagate(t *testing.T) {
	f := setupReconTest()
	f.orderRepo.On("GetByID", mock.Anything, "order-1").Return(paidOrder(), nil)
	f.processor.On("Refund", mock.Anything, mock.Anything).
		Return(nil, domain.ErrGatewayUnauthorized)

	err := f.svc.Refund(context.Background(), domain.Actor{ID: "a1", Role: domain.RoleAdmin},
		"order-1", decimal.NewFromFloat(5))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayUnauthorized))
	assert.False(t, domain.IsDecline(err))
}
