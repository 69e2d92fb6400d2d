package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanpos/hanpos/internal/domain/order"
)

type createOrderLine struct {
	ItemID    *string  `json:"itemId"`
	SetID     *string  `json:"setId"`
	Qty       int      `json:"qty"`
	Note      *string  `json:"note"`
	OptionIDs []string `json:"optionIds"`
}

type createOrderRequest struct {
	TableID    *string           `json:"tableId"`
	CustomerID *string           `json:"customerId"`
	Channel    order.Channel     `json:"channel"`
	Note       *string           `json:"note"`
	Items      []createOrderLine `json:"items"`
}

type updateOrderRequest struct {
	Version  int             `json:"version"`
	Status   *order.Status   `json:"status"`
	Priority *order.Priority `json:"priority"`
	Note     *string         `json:"note"`
}

type itemOptionResponse struct {
	ID         string          `json:"id"`
	OptionID   *string         `json:"optionId"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"priceDelta"`
}

type orderItemResponse struct {
	ID         string               `json:"id"`
	ItemID     *string              `json:"itemId"`
	SetID      *string              `json:"setId"`
	Name       string               `json:"name"`
	Qty        int                  `json:"qty"`
	UnitPrice  decimal.Decimal      `json:"unitPrice"`
	TotalPrice decimal.Decimal      `json:"totalPrice"`
	Note       *string              `json:"note"`
	Options    []itemOptionResponse `json:"options"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	StoreID      string              `json:"storeId"`
	OrderNo      string              `json:"orderNo"`
	Status       order.Status        `json:"status"`
	Priority     order.Priority      `json:"priority"`
	Channel      order.Channel       `json:"channel"`
	TableID      *string             `json:"tableId"`
	CustomerID   *string             `json:"customerId"`
	Note         *string             `json:"note"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	Tax          decimal.Decimal     `json:"tax"`
	Total        decimal.Decimal     `json:"total"`
	PaidAmount   decimal.Decimal     `json:"paidAmount"`
	ChangeAmount decimal.Decimal     `json:"changeAmount"`
	Version      int                 `json:"version"`
	ClosedAt     *time.Time          `json:"closedAt"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	Items        []orderItemResponse `json:"items"`
	Payments     []paymentResponse   `json:"payments,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		opts := make([]itemOptionResponse, 0, len(it.Options))
		for _, op := range it.Options {
			opts = append(opts, itemOptionResponse{
				ID:         op.ID,
				OptionID:   op.OptionID,
				Name:       op.NameSnapshot,
				PriceDelta: op.PriceDelta,
			})
		}
		items = append(items, orderItemResponse{
			ID:         it.ID,
			ItemID:     it.ItemID,
			SetID:      it.SetID,
			Name:       it.NameSnapshot,
			Qty:        it.Qty,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
			Note:       it.Note,
			Options:    opts,
		})
	}
	return orderResponse{
		ID:           o.ID,
		StoreID:      o.StoreID,
		OrderNo:      o.OrderNo,
		Status:       o.Status,
		Priority:     o.Priority,
		Channel:      o.Channel,
		TableID:      o.TableID,
		CustomerID:   o.CustomerID,
		Note:         o.Note,
		Subtotal:     o.Subtotal,
		Tax:          o.Tax,
		Total:        o.Total,
		PaidAmount:   o.PaidAmount,
		ChangeAmount: o.ChangeAmount,
		Version:      o.Version,
		ClosedAt:     o.ClosedAt,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		Items:        items,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		writeForbidden(w)
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lines := make([]order.CreateItem, 0, len(req.Items))
	for _, l := range req.Items {
		lines = append(lines, order.CreateItem{
			ItemID:    l.ItemID,
			SetID:     l.SetID,
			Qty:       l.Qty,
			Note:      l.Note,
			OptionIDs: l.OptionIDs,
		})
	}
	created, err := h.orders.Create(r.Context(), storeID, order.CreateRequest{
		TableID:    req.TableID,
		CustomerID: req.CustomerID,
		Channel:    req.Channel,
		Note:       req.Note,
		Items:      lines,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(created))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		writeForbidden(w)
		return
	}
	o, err := h.orders.Get(r.Context(), storeID, r.PathValue("orderID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	resp := toOrderResponse(o)
	payments, err := h.payments.ListByOrder(r.Context(), storeID, o.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(&p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		writeForbidden(w)
		return
	}
	f, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	orders, err := h.orders.List(r.Context(), storeID, f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		writeForbidden(w)
		return
	}
	var req updateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.orders.Update(r.Context(), storeID, r.PathValue("orderID"), req.Version, order.Patch{
		Status:   req.Status,
		Priority: req.Priority,
		Note:     req.Note,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

func parseListFilter(r *http.Request) (order.Filter, error) {
	var f order.Filter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		st := order.Status(v)
		if !st.Valid() {
			return f, &order.InvalidArgumentError{Field: "status", Value: v}
		}
		f.Status = &st
	}
	if v := q.Get("priority"); v != "" {
		pr := order.Priority(v)
		if !pr.Valid() {
			return f, &order.InvalidArgumentError{Field: "priority", Value: v}
		}
		f.Priority = &pr
	}
	switch v := q.Get("sortBy"); v {
	case "", "createdAt", "priority":
		f.SortBy = v
	default:
		return f, &order.InvalidArgumentError{Field: "sortBy", Value: v}
	}
	f.Desc = q.Get("sortDir") != "asc"
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, &order.InvalidArgumentError{Field: "limit", Value: v}
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, &order.InvalidArgumentError{Field: "offset", Value: v}
		}
		f.Offset = n
	}
	return f, nil
}
