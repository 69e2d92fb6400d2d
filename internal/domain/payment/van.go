package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockVAN is the default Approver: a stand-in for a real VAN (value-added
// network) gateway. Cash always approves with no provider metadata; card and
// other non-cash methods approve with synthetic provider metadata. Swap in a
// real gateway client by implementing Approver.
type MockVAN struct {
	// Provider is the provider string stamped on non-cash approvals.
	Provider string
	// DeclineAbove declines non-cash amounts above this threshold when set,
	// useful for exercising the declined path in dev environments.
	DeclineAbove *decimal.Decimal
}

var _ Approver = (*MockVAN)(nil)

// NewMockVAN returns a MockVAN with the KFTC provider string.
func NewMockVAN() *MockVAN {
	return &MockVAN{Provider: "KFTC"}
}

// Authorize resolves the capture attempt synchronously. It is side-effect
// free, so a rolled-back capture transaction leaves nothing dangling.
func (v *MockVAN) Authorize(_ context.Context, method Method, amount decimal.Decimal) (*Approval, error) {
	if method == MethodCash {
		return &Approval{Status: StatusApproved}, nil
	}

	if v.DeclineAbove != nil && amount.GreaterThan(*v.DeclineAbove) {
		return &Approval{Status: StatusDeclined}, nil
	}

	provider := v.Provider
	txID := "VAN-" + uuid.New().String()
	code := approvalCode()
	brand := "VISA"
	masked := "****-****-****-1234"
	return &Approval{
		Status:           StatusApproved,
		VANProvider:      &provider,
		VANTxID:          &txID,
		ApprovalCode:     &code,
		CardBrand:        &brand,
		CardNumberMasked: &masked,
	}, nil
}

// approvalCode generates an 8-character uppercase hex approval code.
func approvalCode() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return strings.ToUpper(hex.EncodeToString(buf))
}
