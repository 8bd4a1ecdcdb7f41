package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/culturearts/portal/internal/model"
	"github.com/culturearts/portal/internal/queue"
	"github.com/culturearts/portal/internal/store"
)

// BorrowingHandler handles borrowing, return and repair endpoints.
type BorrowingHandler struct {
	DB        *sql.DB
	Publisher queue.Publisher
}

type approveRequest struct {
	RequestID int64            `json:"request_id"`
	Items     []model.LineItem `json:"items"`
}

type rejectRequest struct {
	RequestID int64  `json:"request_id"`
	Reason    string `json:"reason"`
}

type returnRequest struct {
	RequestID int64              `json:"request_id"`
	Items     []model.ReturnLine `json:"items"`
}

type confirmReturnRequest struct {
	ReturnID int64 `json:"return_id"`
}

type completeRepairRequest struct {
	RepairID int64 `json:"repair_id"`
}

// publish sends ev and logs failures. The transition is already committed,
// so the request still succeeds.
func (h *BorrowingHandler) publish(ctx context.Context, ev queue.InventoryEvent) {
	if err := h.Publisher.Publish(ctx, ev); err != nil {
		slog.Error("publishing inventory event", "type", ev.Type, "error", err)
	}
}

func availability(recs ...model.Reconciliation) map[int64]int {
	out := make(map[int64]int, len(recs))
	for _, rec := range recs {
		out[rec.ItemID] = rec.Available
	}
	return out
}

// List handles GET /api/borrowing?status=&current_status=&student_id=.
func (h *BorrowingHandler) List(w http.ResponseWriter, r *http.Request) {
	studentID, ok := queryID(w, r, "student_id")
	if !ok {
		return
	}
	q := r.URL.Query()
	requests, err := store.ListBorrowing(r.Context(), h.DB, GetAccess(r.Context()), store.BorrowingFilter{
		Status:        q.Get("status"),
		CurrentStatus: q.Get("current_status"),
		StudentID:     studentID,
	})
	if err != nil {
		writeStoreError(w, err, "listing borrowing requests")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"requests": emptyIfNil(requests)})
}

// Get handles GET /api/borrowing/{id}.
func (h *BorrowingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "request")
	if !ok {
		return
	}
	req, err := store.GetBorrowing(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "getting borrowing request")
		return
	}
	if req == nil || !GetAccess(r.Context()).Allows(req.StudentCampus) {
		jsonError(w, http.StatusNotFound, "borrowing request not found")
		return
	}
	returns, err := store.ListReturns(r.Context(), h.DB, GetAccess(r.Context()), "", id)
	if err != nil {
		writeStoreError(w, err, "listing returns")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"request": req, "returns": emptyIfNil(returns)})
}

// Create handles POST /api/borrowing.
func (h *BorrowingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in store.BorrowingInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := store.CreateBorrowing(r.Context(), h.DB, GetAccess(r.Context()), in)
	if err != nil {
		writeStoreError(w, err, "creating borrowing request")
		return
	}

	slog.Info("borrowing request created", "user", GetActor(r.Context()).Email, "request_id", req.ID,
		"student_id", req.StudentID, "items", len(req.RequestedItems))
	jsonSuccess(w, http.StatusCreated, "borrowing request submitted", map[string]any{"request_id": req.ID, "request": req})
}

// Approve handles POST /api/borrowing/approve.
func (h *BorrowingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var body approveRequest
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, body.RequestID, "request_id") {
		return
	}

	ctx := r.Context()
	actor := GetActor(ctx)
	req, recs, err := store.ApproveBorrowing(ctx, h.DB, GetAccess(ctx), body.RequestID, actor.UserID, body.Items)
	if err != nil {
		writeStoreError(w, err, "approving borrowing request")
		return
	}

	available := make(map[int64]int, len(recs))
	for id, rec := range recs {
		available[id] = rec.Available
	}
	slog.Info("borrowing approved", "user", actor.Email, "request_id", req.ID, "items", len(req.ApprovedItems))
	h.publish(ctx, queue.InventoryEvent{
		Type:       queue.EventBorrowApproved,
		RequestID:  req.ID,
		Campus:     req.StudentCampus,
		ActorEmail: actor.Email,
		Available:  available,
		Detail:     map[string]any{"approved_items": req.ApprovedItems},
	})
	jsonSuccess(w, http.StatusOK, "borrowing request approved", map[string]any{"request": req, "available": available})
}

// Reject handles POST /api/borrowing/reject.
func (h *BorrowingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var body rejectRequest
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, body.RequestID, "request_id") {
		return
	}

	ctx := r.Context()
	actor := GetActor(ctx)
	req, err := store.RejectBorrowing(ctx, h.DB, GetAccess(ctx), body.RequestID, actor.UserID, body.Reason)
	if err != nil {
		writeStoreError(w, err, "rejecting borrowing request")
		return
	}

	slog.Info("borrowing rejected", "user", actor.Email, "request_id", req.ID)

	h.publish(ctx, queue.InventoryEvent{
		Type:       queue.EventBorrowRejected,
		RequestID:  req.ID,
		Campus:     req.StudentCampus,
		ActorEmail: actor.Email,
		Detail:     map[string]any{"reason": req.RejectReason},
	})
	jsonSuccess(w, http.StatusOK, "borrowing request rejected", map[string]any{"request": req})
}

// SubmitReturn handles POST /api/borrowing/return.
func (h *BorrowingHandler) SubmitReturn(w http.ResponseWriter, r *http.Request) {
	var body returnRequest
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, body.RequestID, "request_id") {
		return
	}

	returns, err := store.SubmitReturn(r.Context(), h.DB, GetAccess(r.Context()), body.RequestID, body.Items)
	if err != nil {
		writeStoreError(w, err, "submitting return")
		return
	}

	slog.Info("return submitted", "user", GetActor(r.Context()).Email, "request_id", body.RequestID, "returns", len(returns))
	jsonSuccess(w, http.StatusCreated, "return submitted", map[string]any{"returns": returns})
}

// ListReturns handles GET /api/returns?status=&request_id=.
func (h *BorrowingHandler) ListReturns(w http.ResponseWriter, r *http.Request) {
	requestID, ok := queryID(w, r, "request_id")
	if !ok {
		return
	}
	returns, err := store.ListReturns(r.Context(), h.DB, GetAccess(r.Context()), r.URL.Query().Get("status"), requestID)
	if err != nil {
		writeStoreError(w, err, "listing returns")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"returns": emptyIfNil(returns)})
}

// ConfirmReturn handles POST /api/returns/confirm.
func (h *BorrowingHandler) ConfirmReturn(w http.ResponseWriter, r *http.Request) {
	var body confirmReturnRequest
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, body.ReturnID, "return_id") {
		return
	}

	ctx := r.Context()
	actor := GetActor(ctx)
	ret, rec, err := store.ConfirmReturn(ctx, h.DB, GetAccess(ctx), body.ReturnID, actor.UserID)
	if err != nil {
		writeStoreError(w, err, "confirming return")
		return
	}

	slog.Info("return confirmed", "user", actor.Email, "return_id", ret.ID, "item_id", ret.ItemID,
		"quantity", ret.Quantity, "condition", ret.Condition)

	h.publish(ctx, queue.InventoryEvent{
		Type:       queue.EventReturnConfirmed,
		RequestID:  ret.BorrowingRequestID,
		ItemID:     ret.ItemID,
		Quantity:   ret.Quantity,
		Campus:     ret.StudentCampus,
		ActorEmail: actor.Email,
		Available:  availability(*rec),
		Detail:     map[string]any{"condition": ret.Condition},
	})
	jsonSuccess(w, http.StatusOK, "return confirmed", map[string]any{"return": ret, "quantities": rec})
}

// ListRepairs handles GET /api/repairs.
func (h *BorrowingHandler) ListRepairs(w http.ResponseWriter, r *http.Request) {
	repairs, err := store.ListRepairs(r.Context(), h.DB, GetAccess(r.Context()))
	if err != nil {
		writeStoreError(w, err, "listing repairs")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"repairs": emptyIfNil(repairs)})
}

// CompleteRepair handles POST /api/repairs/complete.
func (h *BorrowingHandler) CompleteRepair(w http.ResponseWriter, r *http.Request) {
	var body completeRepairRequest
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, body.RepairID, "repair_id") {
		return
	}

	ctx := r.Context()
	actor := GetActor(ctx)
	repair, rec, err := store.CompleteRepair(ctx, h.DB, GetAccess(ctx), body.RepairID)
	if err != nil {
		writeStoreError(w, err, "completing repair")
		return
	}

	slog.Info("repair completed", "user", actor.Email, "repair_id", repair.ID, "item_id", repair.ItemID, "quantity", repair.Quantity)
	h.publish(ctx, queue.InventoryEvent{
		Type:       queue.EventRepairCompleted,
		RequestID:  repair.BorrowingRequestID,
		ItemID:     repair.ItemID,
		Quantity:   repair.Quantity,
		Campus:     repair.ItemCampus,
		ActorEmail: actor.Email,
		Available:  availability(*rec),
	})
	jsonSuccess(w, http.StatusOK, "repair completed", map[string]any{"repair": repair, "quantities": rec})
}
