package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mbiss10/secure-aggregation/protocol"
)

// ClientHandler provides the local HTTP API of a participant: value
// submission and status.
type ClientHandler struct {
	client *Client
}

// ValueRequest is the body of POST /client/value.
type ValueRequest struct {
	Name  string   `json:"name,omitempty"`
	Value *big.Int `json:"value"`
}

// NewClientHandler creates a handler for client.
func NewClientHandler(client *Client) *ClientHandler {
	return &ClientHandler{client: client}
}

// RegisterRoutes registers HTTP routes for client operations
func (h *ClientHandler) RegisterRoutes(r chi.Router) {
	r.Get("/client/status", h.handleStatus)
	r.Post("/client/value", h.handleValue)
}

func (h *ClientHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.client.Status())
}

func (h *ClientHandler) handleValue(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to read value request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Value == nil {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}

	if req.Name != "" {
		h.client.SetName(req.Name)
	}

	if err := h.client.SubmitValue(req.Value); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, protocol.ErrValueAlreadySet) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "accepted",
		"message": "Value queued for the current round",
	})
}
