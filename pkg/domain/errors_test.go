package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create booking: %w", NewStaleStateError("booking changed"))

	assert.True(t, HasCode(err, CodeStaleState))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeStaleState))
}

func TestDomainError_IsRetryable(t *testing.T) {
	cases := map[ErrorCode]bool{
		CodeStaleState:         true,
		CodePaymentPending:     true,
		CodePersistence:        true,
		CodeVehicleUnavailable: false,
		CodePaymentDeclined:    false,
		CodeInvalidTransition:  false,
	}
	for code, want := range cases {
		err := &DomainError{Code: code, Message: "x"}
		assert.Equal(t, want, err.IsRetryable(), string(code))
	}
}

func TestDomainError_UnwrapAndDetails(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPersistenceError("insert booking", cause).WithDetail("booking_id", "abc")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "abc", err.Details["booking_id"])
	assert.Contains(t, err.Error(), "connection reset")
}

func TestNewPaginatedResult(t *testing.T) {
	res := NewPaginatedResult([]int{1, 2}, 21, 1, 10)
	assert.Equal(t, 3, res.TotalPages)

	empty := NewPaginatedResult[int](nil, 0, 1, 10)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}
