//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

func orderPath(orderID, suffix string) string {
	return "/api/stores/" + demoStoreID + "/orders/" + orderID + suffix
}

func simpleOrderBody(itemID string, qty int) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"itemId": itemID, "qty": qty}},
	}
}

func TestCreateOrder_PricingAndNumbering(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)

	// Bulgogi 13000 with Extra Rice 1000, qty 2: line 28000.
	o := createOrder(t, token, map[string]any{
		"items": []map[string]any{
			{"itemId": itemBulgogi, "qty": 2, "optionIds": []string{optExtraRice}},
		},
	})

	if o.Status != "OPEN" || o.Version != 0 {
		t.Fatalf("fresh order: status=%s version=%d", o.Status, o.Version)
	}
	if got := o.Subtotal; got != "28000" {
		t.Fatalf("subtotal = %s, want 28000", got)
	}
	if got := o.Tax; got != "2800" {
		t.Fatalf("tax = %s, want 2800", got)
	}
	if got := o.Total; got != "30800" {
		t.Fatalf("total = %s, want 30800", got)
	}
	if len(o.OrderNo) != 12 || o.OrderNo[8] != '-' {
		t.Fatalf("order number %q not in YYYYMMDD-NNN form", o.OrderNo)
	}
}

func TestCreateOrder_SetWithOption(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)

	o := createOrder(t, token, map[string]any{
		"items": []map[string]any{
			{"setId": setLunchA, "qty": 1, "optionIds": []string{optLargeSize}},
		},
	})
	if len(o.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(o.Items))
	}
	// Lunch Set A 15000 + Large Size 500.
	if got := o.Items[0].UnitPrice; got != "15500" {
		t.Fatalf("unit price = %s, want 15500", got)
	}
}

func TestCreateOrder_EmptyItemsRejected(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)

	resp := doReq(t, http.MethodPost, "/api/stores/"+demoStoreID+"/orders",
		map[string]any{"items": []any{}}, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	env := decodeJSON[errorEnvelope](t, resp)
	if env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("code = %s, want VALIDATION_ERROR", env.Error.Code)
	}
}

func TestCashPayment_SettlesWithChange(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)

	// Stew 9000, tax 900, total 9900. Pay 10000 cash.
	o := createOrder(t, token, simpleOrderBody(itemStew, 1))

	resp := doReq(t, http.MethodPost, orderPath(o.ID, "/payments"),
		map[string]any{"method": "CASH", "amount": 10000}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("capture status = %d, want 201", resp.StatusCode)
	}
	p := decodeJSON[paymentResponse](t, resp)
	if p.Status != "APPROVED" {
		t.Fatalf("payment status = %s, want APPROVED", p.Status)
	}

	got := decodeJSON[orderResponse](t, doReq(t, http.MethodGet, orderPath(o.ID, ""), nil, token))
	if got.Status != "PAID" {
		t.Fatalf("order status = %s, want PAID", got.Status)
	}
	if got.ChangeAmount != "100" {
		t.Fatalf("change = %s, want 100", got.ChangeAmount)
	}
	if got.ClosedAt == nil {
		t.Fatal("closedAt not set on paid order")
	}
	if got.Version != 1 {
		t.Fatalf("version = %d, want 1", got.Version)
	}
}

func TestCardPayment_CarriesVANMetadata(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)
	o := createOrder(t, token, simpleOrderBody(itemStew, 1))

	resp := doReq(t, http.MethodPost, orderPath(o.ID, "/payments"),
		map[string]any{"method": "CARD", "amount": 9900}, token)
	p := decodeJSON[paymentResponse](t, resp)

	if p.VANProvider == nil || *p.VANProvider != "KFTC" {
		t.Fatalf("vanProvider = %v, want KFTC", p.VANProvider)
	}
	if p.CardNumberMasked == nil || *p.CardNumberMasked != "****-****-****-1234" {
		t.Fatalf("cardNumberMasked = %v", p.CardNumberMasked)
	}
}

func TestPayment_RejectedOnPaidOrder(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)
	o := createOrder(t, token, simpleOrderBody(itemStew, 1))

	resp := doReq(t, http.MethodPost, orderPath(o.ID, "/payments"),
		map[string]any{"method": "CASH", "amount": 9900}, token)
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, orderPath(o.ID, "/payments"),
		map[string]any{"method": "CASH", "amount": 9900}, token)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	env := decodeJSON[errorEnvelope](t, resp)
	if env.Error.Code != "INVALID_STATE" {
		t.Fatalf("code = %s, want INVALID_STATE", env.Error.Code)
	}
}

func TestRefund_ReopensOrderAndCapsAmount(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)
	o := createOrder(t, token, simpleOrderBody(itemStew, 1))

	resp := doReq(t, http.MethodPost, orderPath(o.ID, "/payments"),
		map[string]any{"method": "CARD", "amount": 9900}, token)
	p := decodeJSON[paymentResponse](t, resp)

	// Partial refund reopens the order.
	resp = doReq(t, http.MethodPost, orderPath(o.ID, "/refunds"),
		map[string]any{"paymentId": p.ID, "amount": 4000, "reason": "one dish returned"}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("refund status = %d, want 201", resp.StatusCode)
	}
	r := decodeJSON[refundResponse](t, resp)
	if r.Status != "APPROVED" {
		t.Fatalf("refund status = %s", r.Status)
	}

	got := decodeJSON[orderResponse](t, doReq(t, http.MethodGet, orderPath(o.ID, ""), nil, token))
	if got.Status != "OPEN" {
		t.Fatalf("order status = %s, want OPEN after refund", got.Status)
	}
	if got.ClosedAt != nil {
		t.Fatal("closedAt still set after refund")
	}
	if got.PaidAmount != "5900" {
		t.Fatalf("paidAmount = %s, want 5900", got.PaidAmount)
	}

	// Refunding more than the remainder is rejected.
	resp = doReq(t, http.MethodPost, orderPath(o.ID, "/refunds"),
		map[string]any{"paymentId": p.ID, "amount": 6000}, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("over-refund status = %d, want 400", resp.StatusCode)
	}
	env := decodeJSON[errorEnvelope](t, resp)
	if env.Error.Code != "INVALID_AMOUNT" {
		t.Fatalf("code = %s, want INVALID_AMOUNT", env.Error.Code)
	}
}

func TestUpdateOrder_VersionConflict(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)
	o := createOrder(t, token, simpleOrderBody(itemStew, 1))

	// First update succeeds and bumps the version.
	resp := doReq(t, http.MethodPatch, orderPath(o.ID, ""),
		map[string]any{"version": 0, "priority": "URGENT"}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	updated := decodeJSON[orderResponse](t, resp)
	if updated.Version != 1 || updated.Priority != "URGENT" {
		t.Fatalf("updated: version=%d priority=%s", updated.Version, updated.Priority)
	}

	// Replaying the stale version fails with the authoritative version.
	resp = doReq(t, http.MethodPatch, orderPath(o.ID, ""),
		map[string]any{"version": 0, "priority": "LOW"}, token)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stale update status = %d, want 409", resp.StatusCode)
	}
	env := decodeJSON[errorEnvelope](t, resp)
	if env.Error.Code != "VERSION_CONFLICT" {
		t.Fatalf("code = %s, want VERSION_CONFLICT", env.Error.Code)
	}
	if env.Error.CurrentVersion == nil || *env.Error.CurrentVersion != 1 {
		t.Fatalf("currentVersion = %v, want 1", env.Error.CurrentVersion)
	}
}

func TestTenantScoping(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)
	o := createOrder(t, token, simpleOrderBody(itemStew, 1))

	// No token at all: 401 from the auth middleware.
	resp := doReq(t, http.MethodGet, orderPath(o.ID, ""), nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	// Valid token for a different store: 403, order invisible.
	otherToken := signToken(t, demoUserID, "99999999-9999-9999-9999-999999999999")
	resp = doReq(t, http.MethodGet, orderPath(o.ID, ""), nil, otherToken)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-store status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestConcurrentCreation_UniqueOrderNumbers(t *testing.T) {
	token := signToken(t, demoUserID, demoStoreID)

	const n = 10
	var (
		mu  sync.Mutex
		nos = make(map[string]struct{}, n)
	)

	body, err := json.Marshal(simpleOrderBody(itemStew, 1))
	if err != nil {
		t.Fatal(err)
	}

	var g errgroup.Group
	for range n {
		g.Go(func() error {
			req, err := http.NewRequest(http.MethodPost, baseURL+"/api/stores/"+demoStoreID+"/orders", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("create status %d", resp.StatusCode)
			}

			var o orderResponse
			if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
				return err
			}
			mu.Lock()
			nos[o.OrderNo] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if len(nos) != n {
		t.Fatalf("got %d distinct order numbers from %d concurrent creations", len(nos), n)
	}
}
