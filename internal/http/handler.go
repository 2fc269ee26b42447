package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"paygate/internal/gate"
	"paygate/internal/models"
	"paygate/internal/store"
)

type Handler struct {
	Journal     *store.Store
	Description string
}

type resourceResponse struct {
	Report      string `json:"report"`
	GeneratedAt string `json:"generatedAt"`
	Transaction string `json:"transaction,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

type settlementResponse struct {
	TxHash      string `json:"txHash"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
	PayTo       string `json:"payTo,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	ConfirmedAt string `json:"confirmedAt,omitempty"`
}

func NewHandler(journal *store.Store, description string) *Handler {
	return &Handler{Journal: journal, Description: description}
}

// GetResource is the protected handler. It only ever runs after the gate has
// verified and settled a payment.
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	resp := resourceResponse{
		Report:      h.Description,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if settled, ok := gate.SettlementFromContext(r.Context()); ok {
		resp.Transaction = settled.TxHash
		resp.Payer = settled.Payer
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSettlement exposes journal rows for troubleshooting.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	txHash := chi.URLParam(r, "txHash")
	if txHash == "" {
		writeError(w, http.StatusBadRequest, "missing tx hash")
		return
	}
	if h.Journal == nil {
		writeError(w, http.StatusNotFound, "journal is not enabled")
		return
	}

	rec, err := h.Journal.GetSettlement(r.Context(), txHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "settlement not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get settlement failed")
		return
	}

	writeJSON(w, http.StatusOK, toSettlementResponse(rec))
}

func toSettlementResponse(rec *models.SettlementRecord) settlementResponse {
	resp := settlementResponse{
		TxHash:    rec.TxHash,
		Network:   rec.Network,
		Payer:     rec.Payer,
		PayTo:     rec.PayTo,
		Amount:    rec.Amount,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.ConfirmedAt != nil {
		resp.ConfirmedAt = rec.ConfirmedAt.Format(time.RFC3339)
	}
	return resp
}
