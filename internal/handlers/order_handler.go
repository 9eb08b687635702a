package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"grocery/internal/auth"
	"grocery/internal/logging"
	"grocery/internal/models"
	"grocery/internal/order"
)

type placeOrderRequest struct {
	UserID int64        `json:"userId"`
	Items  []order.Line `json:"items"`
}

type placeOrderResponse struct {
	Message    string             `json:"message"`
	Order      models.Order       `json:"order"`
	OrderItems []models.OrderItem `json:"orderItems"`
}

type unavailableResponse struct {
	Message          string  `json:"message"`
	UnavailableItems []int64 `json:"unavailableItems"`
}

type ordersData struct {
	pageData
	Orders []models.Order `json:"orders"`
}

type orderItemsData struct {
	pageData
	OrderItems []models.OrderItemView `json:"orderItems"`
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body", Error: err.Error()})
		return
	}
	if !auth.SameUser(r.Context(), req.UserID) {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: auth.MsgInvalidUserParam})
		return
	}

	placement, err := h.placer.PlaceOrder(r.Context(), req.UserID, req.Items)
	if err != nil {
		h.writeOrderError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		Message:    "Order placed successfully",
		Order:      placement.Order,
		OrderItems: placement.Items,
	})
}

// writeOrderError maps placement failures onto status codes. Internal details never reach the body of a 5xx.
func (h *Handler) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	var unavailable *order.UnavailableError
	switch {
	case errors.Is(err, order.ErrValidation):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid order request", Error: err.Error()})
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusBadRequest, unavailableResponse{
			Message:          "One or more items are not available in sufficient quantity",
			UnavailableItems: unavailable.ItemIDs,
		})
	default:
		logging.FromContextOr(ctx, h.log).Error("place_order_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal server error"})
	}
}

func (h *Handler) UserOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	page := pageFromQuery(r)

	result, err := h.orders.FindOrdersByUser(r.Context(), id.UserID, page)
	if err != nil {
		logging.FromContextOr(r.Context(), h.log).Error("list_orders_failed", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, "Failed to retrieve user's order history", nil)
		return
	}

	writeStatus(w, http.StatusOK, "Orders retrieved successfully", ordersData{
		pageData: pageData{TotalCount: result.TotalCount, CurrentPage: page.Number, PageSize: page.Size},
		Orders:   result.Orders,
	})
}

// OrderItems lists the caller's order lines, of one order when {orderId} is present.
func (h *Handler) OrderItems(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	page := pageFromQuery(r)

	var orderID int64
	if raw := chi.URLParam(r, "orderId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeStatus(w, http.StatusBadRequest, "Invalid order id", nil)
			return
		}
		orderID = parsed
	}

	result, err := h.orders.FindOrderItems(r.Context(), id.UserID, orderID, page)
	if err != nil {
		logging.FromContextOr(r.Context(), h.log).Error("list_order_items_failed", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, "Failed to retrieve order details", nil)
		return
	}
	if len(result.Items) == 0 {
		writeStatus(w, http.StatusNotFound, "No order items found", nil)
		return
	}

	writeStatus(w, http.StatusOK, "Order items retrieved successfully", orderItemsData{
		pageData:   pageData{TotalCount: result.TotalCount, CurrentPage: page.Number, PageSize: page.Size},
		OrderItems: result.Items,
	})
}
