package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	"github.com/vroomshare/service-booking/internal/repository/memory"
	"github.com/vroomshare/service-booking/pkg/domain"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Authorize(ctx context.Context, in paymentDomain.AuthorizeInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Capture(ctx context.Context, ref, key string) error {
	return m.Called(ctx, ref, key).Error(0)
}

func (m *mockGateway) Release(ctx context.Context, ref, key string) error {
	return m.Called(ctx, ref, key).Error(0)
}

func (m *mockGateway) Refund(ctx context.Context, ref string, amount int64, key string) error {
	return m.Called(ctx, ref, amount, key).Error(0)
}

func (m *mockGateway) Status(ctx context.Context, ref string) (paymentDomain.GatewayStatus, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(paymentDomain.GatewayStatus), args.Error(1)
}

func newTestCoordinator(gw paymentDomain.Gateway) (*Coordinator, *memory.HoldRepository) {
	holds := memory.NewHoldRepository()
	cfg := Config{
		AuthorizeTimeout:     time.Second,
		CaptureTimeout:       time.Second,
		CallTimeout:          time.Second,
		StatusPollInterval:   5 * time.Millisecond,
		StatusPollMaxElapsed: 200 * time.Millisecond,
	}
	return NewCoordinator(gw, holds, cfg, zap.NewNop()), holds
}

func authorizeHold(t *testing.T, c *Coordinator, gw *mockGateway) *paymentDomain.Hold {
	t.Helper()
	gw.On("Authorize", mock.Anything, mock.Anything).Return("pi_123", nil).Once()
	hold, err := c.Authorize(context.Background(), AuthorizeRequest{
		BookingID: uuid.New(), PayerRef: "pm_card", Amount: 975, Currency: "USD",
	})
	require.NoError(t, err)
	return hold
}

func TestAuthorize_UsesHoldIDAsIdempotencyKey(t *testing.T) {
	gw := &mockGateway{}
	c, holds := newTestCoordinator(gw)
	bookingID := uuid.New()

	var seen paymentDomain.AuthorizeInput
	gw.On("Authorize", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { seen = args.Get(1).(paymentDomain.AuthorizeInput) }).
		Return("pi_1", nil).Once()

	hold, err := c.Authorize(context.Background(), AuthorizeRequest{BookingID: bookingID, PayerRef: "pm", Amount: 100, Currency: "USD"})
	require.NoError(t, err)

	assert.Equal(t, hold.ID.String(), seen.IdempotencyKey)
	assert.Equal(t, bookingID.String(), seen.Metadata["booking_id"])
	stored, err := holds.FindByID(context.Background(), hold.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentDomain.HoldHeld, stored.State)
	assert.Equal(t, "pi_1", stored.GatewayRef)
}

func TestAuthorize_DeclineAndTimeout(t *testing.T) {
	gw := &mockGateway{}
	c, _ := newTestCoordinator(gw)

	gw.On("Authorize", mock.Anything, mock.Anything).Return("", paymentDomain.ErrDeclined).Once()
	_, err := c.Authorize(context.Background(), AuthorizeRequest{BookingID: uuid.New(), PayerRef: "pm", Amount: 100, Currency: "USD"})
	assert.True(t, domain.HasCode(err, domain.CodePaymentDeclined))

	gw.On("Authorize", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Once()
	_, err = c.Authorize(context.Background(), AuthorizeRequest{BookingID: uuid.New(), PayerRef: "pm", Amount: 100, Currency: "USD"})
	assert.True(t, domain.HasCode(err, domain.CodePaymentDeclined))
	de, _ := domain.AsDomainError(err)
	assert.Contains(t, de.Message, "timed out")
}

func TestCapture_Success(t *testing.T) {
	gw := &mockGateway{}
	c, _ := newTestCoordinator(gw)
	hold := authorizeHold(t, c, gw)

	gw.On("Capture", mock.Anything, "pi_123", hold.ID.String()+":capture").Return(nil).Once()
	captured, err := c.Capture(context.Background(), hold.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentDomain.HoldCaptured, captured.State)
	gw.AssertExpectations(t)
}

func TestCapture_DefinitiveFailure(t *testing.T) {
	gw := &mockGateway{}
	c, holds := newTestCoordinator(gw)
	hold := authorizeHold(t, c, gw)

	gw.On("Capture", mock.Anything, "pi_123", mock.Anything).Return(paymentDomain.ErrHoldExpired).Once()
	_, err := c.Capture(context.Background(), hold.ID)
	assert.True(t, domain.HasCode(err, domain.CodeCaptureFailed))

	stored, _ := holds.FindByID(context.Background(), hold.ID)
	assert.Equal(t, paymentDomain.HoldCaptureFailed, stored.State)
}

func TestCapture_UnknownOutcomeIsPending(t *testing.T) {
	gw := &mockGateway{}
	c, holds := newTestCoordinator(gw)
	hold := authorizeHold(t, c, gw)

	gw.On("Capture", mock.Anything, "pi_123", mock.Anything).Return(context.DeadlineExceeded).Once()
	_, err := c.Capture(context.Background(), hold.ID)
	assert.True(t, domain.HasCode(err, domain.CodePaymentPending))

	stored, _ := holds.FindByID(context.Background(), hold.ID)
	assert.Equal(t, paymentDomain.HoldCaptureUnknown, stored.State)
}

func TestTerminalOperationsAreSingleUse(t *testing.T) {
	gw := &mockGateway{}
	c, _ := newTestCoordinator(gw)
	hold := authorizeHold(t, c, gw)

	gw.On("Release", mock.Anything, "pi_123", mock.Anything).Return(nil).Once()
	released, err := c.Release(context.Background(), hold.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentDomain.HoldReleased, released.State)

	_, err = c.Capture(context.Background(), hold.ID)
	assert.True(t, domain.HasCode(err, domain.CodeInvalidState))
	_, err = c.Release(context.Background(), hold.ID)
	assert.True(t, domain.HasCode(err, domain.CodeInvalidState))
	_, err = c.Refund(context.Background(), hold.ID, nil)
	assert.True(t, domain.HasCode(err, domain.CodeInvalidState))

	gw.AssertNumberOfCalls(t, "Release", 1)
	gw.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelease_FailureKeepsHoldRetryable(t *testing.T) {
	gw := &mockGateway{}
	c, holds := newTestCoordinator(gw)
	hold := authorizeHold(t, c, gw)

	gw.On("Release", mock.Anything, "pi_123", mock.Anything).Return(errors.New("connection reset")).Once()
	_, err := c.Release(context.Background(), hold.ID)
	assert.True(t, domain.HasCode(err, domain.CodeReleaseFailed))

	stored, _ := holds.FindByID(context.Background(), hold.ID)
	assert.Equal(t, paymentDomain.HoldHeld, stored.State)
	assert.Equal(t, "connection reset", stored.LastError)

	gw.On("Release", mock.Anything, "pi_123", mock.Anything).Return(nil).Once()
	_, err = c.Release(context.Background(), hold.ID)
	assert.NoError(t, err)
}

func TestRefund_PartialAndFull(t *testing.T) {
	gw := &mockGateway{}
	c, _ := newTestCoordinator(gw)

	hold := authorizeHold(t, c, gw)
	gw.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	_, err := c.Capture(context.Background(), hold.ID)
	require.NoError(t, err)

	amount := int64(300)
	gw.On("Refund", mock.Anything, "pi_123", int64(300), hold.ID.String()+":refund").Return(nil).Once()
	refunded, err := c.Refund(context.Background(), hold.ID, &amount)
	require.NoError(t, err)
	assert.Equal(t, paymentDomain.HoldPartiallyRefunded, refunded.State)
	assert.Equal(t, int64(300), refunded.RefundedAmount)

	_, err = c.Refund(context.Background(), hold.ID, nil)
	assert.True(t, domain.HasCode(err, domain.CodeInvalidState))

	other := authorizeHold(t, c, gw)
	_, err = c.Capture(context.Background(), other.ID)
	require.NoError(t, err)
	tooMuch := int64(5000)
	_, err = c.Refund(context.Background(), other.ID, &tooMuch)
	assert.True(t, domain.HasCode(err, domain.CodeValidation))

	gw.On("Refund", mock.Anything, "pi_123", int64(975), mock.Anything).Return(nil).Once()
	full, err := c.Refund(context.Background(), other.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, paymentDomain.HoldRefunded, full.State)
}

func TestResolveCapture(t *testing.T) {
	tests := []struct {
		name     string
		statuses []paymentDomain.GatewayStatus
		want     CaptureResolution
		state    paymentDomain.HoldState
	}{
		{"captured", []paymentDomain.GatewayStatus{paymentDomain.GatewayStatusCaptured}, ResolutionCaptured, paymentDomain.HoldCaptured},
		{"pending then captured", []paymentDomain.GatewayStatus{paymentDomain.GatewayStatusPending, paymentDomain.GatewayStatusCaptured}, ResolutionCaptured, paymentDomain.HoldCaptured},
		{"never captured", []paymentDomain.GatewayStatus{paymentDomain.GatewayStatusHeld}, ResolutionNotCaptured, paymentDomain.HoldHeld},
		{"canceled", []paymentDomain.GatewayStatus{paymentDomain.GatewayStatusCanceled}, ResolutionFailed, paymentDomain.HoldCaptureFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{}
			c, holds := newTestCoordinator(gw)
			hold := authorizeHold(t, c, gw)
			gw.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
			_, err := c.Capture(context.Background(), hold.ID)
			require.True(t, domain.HasCode(err, domain.CodePaymentPending))

			for _, s := range tt.statuses {
				gw.On("Status", mock.Anything, "pi_123").Return(s, nil).Once()
			}
			got, err := c.ResolveCapture(context.Background(), hold.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			stored, _ := holds.FindByID(context.Background(), hold.ID)
			assert.Equal(t, tt.state, stored.State)
			gw.AssertNumberOfCalls(t, "Capture", 1)
		})
	}
}

func TestResolveCapture_StaysUnknownWhileGatewayPending(t *testing.T) {
	gw := &mockGateway{}
	c, holds := newTestCoordinator(gw)
	hold := authorizeHold(t, c, gw)
	gw.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
	_, _ = c.Capture(context.Background(), hold.ID)

	gw.On("Status", mock.Anything, "pi_123").Return(paymentDomain.GatewayStatusPending, nil)
	got, err := c.ResolveCapture(context.Background(), hold.ID)
	require.NoError(t, err)
	assert.Equal(t, ResolutionUnknown, got)

	stored, _ := holds.FindByID(context.Background(), hold.ID)
	assert.Equal(t, paymentDomain.HoldCaptureUnknown, stored.State)
	gw.AssertNumberOfCalls(t, "Capture", 1)
}

type lookupFunc func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)

func (f lookupFunc) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	return f(ctx, ids)
}

func TestReleaseOrphans(t *testing.T) {
	gw := &mockGateway{}
	c, holds := newTestCoordinator(gw)

	orphan := authorizeHold(t, c, gw)
	kept := authorizeHold(t, c, gw)

	lookup := lookupFunc(func(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
		return map[uuid.UUID]bool{kept.BookingID: true}, nil
	})

	gw.On("Release", mock.Anything, "pi_123", orphan.ID.String()+":release").Return(nil).Once()
	n, err := c.ReleaseOrphans(context.Background(), -time.Minute, lookup)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, _ := holds.FindByID(context.Background(), kept.ID)
	assert.Equal(t, paymentDomain.HoldHeld, stored.State)
	stored, _ = holds.FindByID(context.Background(), orphan.ID)
	assert.Equal(t, paymentDomain.HoldReleased, stored.State)
}

func TestSandboxGateway(t *testing.T) {
	gw := NewSandboxGateway()
	c, _ := newTestCoordinator(gw)
	ctx := context.Background()

	_, err := c.Authorize(ctx, AuthorizeRequest{BookingID: uuid.New(), PayerRef: SandboxDeclinePayer, Amount: 10, Currency: "USD"})
	assert.True(t, domain.HasCode(err, domain.CodePaymentDeclined))

	hold, err := c.Authorize(ctx, AuthorizeRequest{BookingID: uuid.New(), PayerRef: "pm_ok", Amount: 10, Currency: "USD"})
	require.NoError(t, err)
	_, err = c.Capture(ctx, hold.ID)
	require.NoError(t, err)

	expiring, err := c.Authorize(ctx, AuthorizeRequest{BookingID: uuid.New(), PayerRef: SandboxExpiredPayer, Amount: 10, Currency: "USD"})
	require.NoError(t, err)
	_, err = c.Capture(ctx, expiring.ID)
	assert.True(t, domain.HasCode(err, domain.CodeCaptureFailed))
}
