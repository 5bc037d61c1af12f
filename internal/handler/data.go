package handler

import (
	"net/http"

	"aspos-sync/internal/repository"
	"aspos-sync/pkg/apierror"
	"aspos-sync/pkg/response"
)

// DataHandler lists the mirrored rows.
type DataHandler struct {
	stores    repository.StoreRepository
	inventory repository.InventoryRepository
}

// NewDataHandler creates a data handler.
func NewDataHandler(stores repository.StoreRepository, inventory repository.InventoryRepository) *DataHandler {
	return &DataHandler{stores: stores, inventory: inventory}
}

// Stores handles GET /api/v1/stores
func (h *DataHandler) Stores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.stores.ListStores(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to list stores"))
		return
	}
	response.OK(w, stores)
}

// Inventory handles GET /api/v1/inventory?store_id=
func (h *DataHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	lines, err := h.inventory.ListInventory(r.Context(), r.URL.Query().Get("store_id"))
	if err != nil {
		response.Error(w, apierror.InternalError("failed to list inventory"))
		return
	}
	response.OK(w, lines)
}
