package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/store"
)

// InventoryHandler handles costume and equipment endpoints.
type InventoryHandler struct {
	DB     *sql.DB
	Policy *access.Policy
}

type itemIDRequest struct {
	ItemID int64 `json:"item_id"`
}

// List handles GET /api/inventory?status=&category=&q=.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := store.ListItems(r.Context(), h.DB, GetAccess(r.Context()), store.ItemFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Query:    q.Get("q"),
	})
	if err != nil {
		writeStoreError(w, err, "listing items")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"items": emptyIfNil(items)})
}

// Get handles GET /api/inventory/{id}.
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}
	item, err := store.GetItemWithQuantities(r.Context(), h.DB, GetAccess(r.Context()), id)
	if err != nil {
		writeStoreError(w, err, "getting item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"item": item})
}

// Create handles POST /api/inventory.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in store.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc := GetAccess(r.Context())
	campus, allowed := targetCampus(h.Policy, acc, in.Campus)
	if !allowed {
		jsonError(w, http.StatusForbidden, "campus is outside your scope")
		return
	}
	in.Campus = campus

	item, err := store.CreateItem(r.Context(), h.DB, in)
	if err != nil {
		writeStoreError(w, err, "creating item")
		return
	}

	slog.Info("item created", "user", GetActor(r.Context()).Email, "item_id", item.ID, "name", item.Name,
		"campus", item.Campus, "quantity", item.Quantity)
	jsonSuccess(w, http.StatusCreated, "item created", map[string]any{"item_id": item.ID, "item": item})
}

// Update handles PUT /api/inventory/{id}.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}
	var in store.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc := GetAccess(r.Context())
	campus, allowed := targetCampus(h.Policy, acc, in.Campus)
	if !allowed {
		jsonError(w, http.StatusForbidden, "campus is outside your scope")
		return
	}
	in.Campus = campus

	item, err := store.UpdateItem(r.Context(), h.DB, acc, id, in)
	if err != nil {
		writeStoreError(w, err, "updating item")
		return
	}

	slog.Info("item updated", "user", GetActor(r.Context()).Email, "item_id", id, "quantity", item.Quantity)
	jsonSuccess(w, http.StatusOK, "item updated", map[string]any{"item": item})
}

// Archive handles POST /api/inventory/archive.
func (h *InventoryHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req itemIDRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, req.ItemID, "item_id") {
		return
	}

	item, err := store.ArchiveItem(r.Context(), h.DB, GetAccess(r.Context()), req.ItemID)
	if err != nil {
		writeStoreError(w, err, "archiving item")
		return
	}

	slog.Info("item archived", "user", GetActor(r.Context()).Email, "item_id", req.ItemID)
	jsonSuccess(w, http.StatusOK, "item archived", map[string]any{"item": item})
}

// Restore handles POST /api/inventory/restore.
func (h *InventoryHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req itemIDRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, req.ItemID, "item_id") {
		return
	}

	item, err := store.RestoreItem(r.Context(), h.DB, GetAccess(r.Context()), req.ItemID)
	if err != nil {
		writeStoreError(w, err, "restoring item")
		return
	}

	slog.Info("item restored", "user", GetActor(r.Context()).Email, "item_id", req.ItemID, "status", item.Status)
	jsonSuccess(w, http.StatusOK, "item restored", map[string]any{"item": item})
}

// Delete handles DELETE /api/inventory/{id}.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}
	if err := store.DeleteItem(r.Context(), h.DB, GetAccess(r.Context()), id); err != nil {
		writeStoreError(w, err, "deleting item")
		return
	}

	slog.Info("item deleted", "user", GetActor(r.Context()).Email, "item_id", id)
	jsonSuccess(w, http.StatusOK, "item deleted", nil)
}
