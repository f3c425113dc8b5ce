package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lox/fairjack/internal/chain"
	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/identity"
)

const maxTxBytes = 64 << 10

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Height  uint64 `json:"height"`
	Clients int    `json:"clients"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Height:  s.chain.Ledger().Latest().Height,
		Clients: s.Connections(),
		Uptime:  time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

// handleSubmit accepts a signed transaction and responds with its receipt
// once the transaction's block is sealed.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var tx chain.Tx
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", fmt.Sprintf("decode transaction: %v", err))
		return
	}

	receipt, err := s.chain.Submit(r.Context(), tx)
	if err != nil {
		status, code := submitStatus(err)
		s.logger.Warn("Transaction rejected", "kind", tx.Kind, "game", tx.GameID, "code", code, "error", err)
		writeError(w, status, code, err.Error())
		return
	}

	status := http.StatusOK
	if !receipt.OK() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, receipt)
}

func submitStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chain.ErrMalformedTx):
		return http.StatusBadRequest, "malformed_tx"
	case errors.Is(err, identity.ErrBadSignature):
		return http.StatusUnauthorized, "bad_signature"
	case errors.Is(err, chain.ErrDuplicateTx):
		return http.StatusConflict, "duplicate_tx"
	default:
		return http.StatusServiceUnavailable, "unavailable"
	}
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.engine.View(id)
	if errors.Is(err, game.ErrInvalidGameID) {
		writeError(w, http.StatusNotFound, game.Code(err), err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, game.Code(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	receipts := s.chain.Ledger().Receipts(chi.URLParam(r, "id"))
	if receipts == nil {
		receipts = []chain.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (s *Server) handleLatestBlock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chain.Ledger().Latest())
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(chi.URLParam(r, "height"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "height must be a non-negative integer")
		return
	}
	b, err := s.chain.Ledger().Block(height)
	if errors.Is(err, chain.ErrBlockNotFound) {
		writeError(w, http.StatusNotFound, "block_not_found", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // Ignore write errors after the header is sent
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
