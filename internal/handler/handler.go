package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/pledge-service/internal/models"
	"github.com/Dan9191/pledge-service/internal/scheduler"
	"github.com/Dan9191/pledge-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// Handler exposes the ledger and scheduler over a JSON HTTP API
type Handler struct {
	svc   *service.Service
	sched *scheduler.Scheduler
	log   *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(svc *service.Service, sched *scheduler.Scheduler, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, sched: sched, log: log}
}

// Routes registers all API routes on the router
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/members", h.CreateMember).Methods("POST")
	r.HandleFunc("/members", h.ListMembers).Methods("GET")
	r.HandleFunc("/members/{id}", h.MemberDetail).Methods("GET")

	r.HandleFunc("/commitments", h.CreateCommitment).Methods("POST")
	r.HandleFunc("/commitments", h.ListCommitments).Methods("GET")
	r.HandleFunc("/commitments/{id}", h.GetCommitment).Methods("GET")
	r.HandleFunc("/commitments/{id}", h.UpdateCommitment).Methods("PATCH")
	r.HandleFunc("/commitments/{id}/remaining", h.AmountRemaining).Methods("GET")
	r.HandleFunc("/commitments/{id}/notifications", h.ListNotifications).Methods("GET")
	r.HandleFunc("/commitments/{id}/notify", h.NotifyOne).Methods("POST")

	r.HandleFunc("/payments", h.RecordPayment).Methods("POST")
	r.HandleFunc("/payments", h.ListPayments).Methods("GET")
	r.HandleFunc("/payments/{id}", h.RemovePayment).Methods("DELETE")

	r.HandleFunc("/notifications/all", h.NotifyAll).Methods("POST")
	r.HandleFunc("/scheduler/tick", h.RunTick).Methods("POST")

	r.HandleFunc("/stats", h.Stats).Methods("GET")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	case errors.Is(err, service.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		h.log.Errorf("Request failed: %v", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

type createMemberRequest struct {
	Phone  string `json:"phone"`
	Name   string `json:"name"`
	Group  string `json:"group"`
	APIKey string `json:"api_key"`
}

// CreateMember handles member registration
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	m, err := h.svc.CreateMember(r.Context(), req.Phone, req.Name, req.Group, req.APIKey)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// Best effort: the registration stands even if the greeting fails.
	if err := h.sched.WelcomeMember(r.Context(), m); err != nil {
		h.log.Errorf("Failed to welcome member %s: %v", m.Code, err)
	}
	h.writeJSON(w, http.StatusCreated, m)
}

// ListMembers handles member listing
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.ListMembers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, members)
}

// MemberDetail returns a member with their commitments and latest payments
func (h *Handler) MemberDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid member id"})
		return
	}
	detail, err := h.svc.MemberDetailByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

type createCommitmentRequest struct {
	MemberID    int64  `json:"member_id"`
	Total       string `json:"total"`
	DueDate     string `json:"due_date"`
	Description string `json:"description"`
}

// CreateCommitment handles pledge creation
func (h *Handler) CreateCommitment(w http.ResponseWriter, r *http.Request) {
	var req createCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	total, err := decimal.NewFromString(req.Total)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "total must be a decimal amount"})
		return
	}
	dueDate, err := time.Parse(dateLayout, req.DueDate)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "due_date must be YYYY-MM-DD"})
		return
	}
	c, err := h.svc.CreateCommitment(r.Context(), req.MemberID, total, dueDate, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

// ListCommitments handles commitment listing
func (h *Handler) ListCommitments(w http.ResponseWriter, r *http.Request) {
	commitments, err := h.svc.ListCommitments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, commitments)
}

// GetCommitment returns a single commitment
func (h *Handler) GetCommitment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid commitment id"})
		return
	}
	c, err := h.svc.CommitmentByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

type updateCommitmentRequest struct {
	Total       *string `json:"total"`
	DueDate     *string `json:"due_date"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// UpdateCommitment handles partial commitment edits
func (h *Handler) UpdateCommitment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid commitment id"})
		return
	}
	var req updateCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var upd service.CommitmentUpdate
	if req.Total != nil {
		total, err := decimal.NewFromString(*req.Total)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "total must be a decimal amount"})
			return
		}
		upd.Total = &total
	}
	if req.DueDate != nil {
		dueDate, err := time.Parse(dateLayout, *req.DueDate)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "due_date must be YYYY-MM-DD"})
			return
		}
		upd.DueDate = &dueDate
	}
	upd.Description = req.Description
	if req.Status != nil {
		status := models.CommitmentStatus(*req.Status)
		upd.Status = &status
	}

	c, err := h.svc.UpdateCommitment(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// AmountRemaining returns the clamped outstanding balance of a commitment
func (h *Handler) AmountRemaining(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid commitment id"})
		return
	}
	remaining, err := h.svc.AmountRemaining(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"remaining": remaining.StringFixed(2)})
}

// ListNotifications returns a commitment's notification history
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid commitment id"})
		return
	}
	records, err := h.svc.NotificationsByCommitment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

type recordPaymentRequest struct {
	CommitmentID int64  `json:"commitment_id"`
	Amount       string `json:"amount"`
	PaidAt       string `json:"paid_at"`
}

// RecordPayment handles payment recording. A missing or unparseable payment
// date falls back to today rather than rejecting the payment.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be a decimal amount"})
		return
	}
	paidAt, err := time.Parse(dateLayout, req.PaidAt)
	if err != nil {
		paidAt = time.Time{}
	}
	p, err := h.svc.RecordPayment(r.Context(), req.CommitmentID, amount, paidAt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// Best effort: the payment stands even if the confirmation fails.
	if _, err := h.sched.ConfirmPayment(r.Context(), p.CommitmentID, p.Amount); err != nil {
		h.log.Errorf("Failed to confirm payment %d: %v", p.ID, err)
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// ListPayments handles payment listing
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.svc.ListPayments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payments)
}

// RemovePayment deletes a payment and re-derives the commitment status
func (h *Handler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}
	if err := h.svc.RemovePayment(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotifyOne sends an on-demand reminder for a single commitment
func (h *Handler) NotifyOne(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid commitment id"})
		return
	}
	rec, err := h.sched.NotifyOne(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// NotifyAll messages every member with an unsettled commitment
func (h *Handler) NotifyAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.sched.NotifyAllUnsettled(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// RunTick triggers the periodic reminder job manually
func (h *Handler) RunTick(w http.ResponseWriter, r *http.Request) {
	attempts := h.sched.RunPeriodicTick(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]int{"attempts": attempts})
}

// Stats returns dashboard aggregates for the last 30 days
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), 30)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}
