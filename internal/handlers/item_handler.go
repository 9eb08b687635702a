package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"grocery/internal/logging"
	"grocery/internal/models"
)

type itemsData struct {
	pageData
	GroceryItems []models.GroceryItem `json:"groceryItems"`
}

// AvailableItems lists in-stock items: ?q= filters by name, page/pageSize/sortBy/orderBy page the result.
func (h *Handler) AvailableItems(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("q"))
	page := pageFromQuery(r)
	key := fmt.Sprintf("q=%s&page=%d&size=%d&sort=%s&order=%s",
		strings.ToLower(search), page.Number, page.Size, page.SortBy, page.OrderBy)

	result, err := h.catalog.Available(r.Context(), key, func(ctx context.Context) (*models.ItemPage, error) {
		return h.items.ListAvailable(ctx, search, page)
	})
	if err != nil {
		logging.FromContextOr(r.Context(), h.log).Error("list_available_items_failed", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	if len(result.Items) == 0 {
		writeStatus(w, http.StatusNotFound, "No available grocery items found", nil)
		return
	}

	writeStatus(w, http.StatusOK, "Available grocery items retrieved successfully", itemsData{
		pageData:     pageData{TotalCount: result.TotalCount, CurrentPage: page.Number, PageSize: page.Size},
		GroceryItems: result.Items,
	})
}
