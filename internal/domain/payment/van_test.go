package payment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockVAN_CashApprovesWithoutMetadata(t *testing.T) {
	v := NewMockVAN()

	a, err := v.Authorize(context.Background(), MethodCash, decimal.NewFromInt(10000))
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, a.Status)
	assert.Nil(t, a.VANProvider)
	assert.Nil(t, a.VANTxID)
	assert.Nil(t, a.CardNumberMasked)
}

func TestMockVAN_CardApprovesWithMetadata(t *testing.T) {
	v := NewMockVAN()

	a, err := v.Authorize(context.Background(), MethodCard, decimal.NewFromInt(10000))
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, a.Status)
	require.NotNil(t, a.VANProvider)
	assert.Equal(t, "KFTC", *a.VANProvider)
	require.NotNil(t, a.VANTxID)
	assert.Contains(t, *a.VANTxID, "VAN-")
	require.NotNil(t, a.ApprovalCode)
	assert.Len(t, *a.ApprovalCode, 8)
	require.NotNil(t, a.CardBrand)
	assert.Equal(t, "VISA", *a.CardBrand)
	require.NotNil(t, a.CardNumberMasked)
	assert.Equal(t, "****-****-****-1234", *a.CardNumberMasked)
}

func TestMockVAN_DeclineAboveThreshold(t *testing.T) {
	limit := decimal.NewFromInt(50000)
	v := &MockVAN{Provider: "KFTC", DeclineAbove: &limit}

	a, err := v.Authorize(context.Background(), MethodCard, decimal.NewFromInt(50001))
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, a.Status)

	// At the threshold still approves; cash ignores the threshold entirely.
	a, err = v.Authorize(context.Background(), MethodCard, limit)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, a.Status)

	a, err = v.Authorize(context.Background(), MethodCash, decimal.NewFromInt(99999999))
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, a.Status)
}
