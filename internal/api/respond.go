package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"papertrade/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps ledger sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with the detail kept out of the response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInstrumentNotFound),
		errors.Is(err, ledger.ErrPriceUnavailable),
		errors.Is(err, ledger.ErrNoActivePortfolio),
		errors.Is(err, ledger.ErrPortfolioNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicatePortfolio),
		errors.Is(err, ledger.ErrConcurrentConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
