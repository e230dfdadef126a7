package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/types"
)

// userID extracts the authenticated user set by the auth collaborator
// upstream of this service.
func userID(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, fmt.Errorf("missing X-User-ID header")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid X-User-ID header")
	}
	return id, nil
}

type orderRequest struct {
	Ticker  string           `json:"ticker"`
	Shares  *decimal.Decimal `json:"shares,omitempty"`
	Dollars *decimal.Decimal `json:"dollars,omitempty"`
}

// size maps the two request shapes onto the engine's sizing input.
// Exactly one of shares/dollars must be present.
func (req *orderRequest) size() (types.OrderSize, error) {
	switch {
	case req.Shares != nil && req.Dollars == nil:
		return types.SizeShares(*req.Shares), nil
	case req.Dollars != nil && req.Shares == nil:
		return types.SizeDollars(*req.Dollars), nil
	default:
		return types.OrderSize{}, fmt.Errorf("exactly one of shares or dollars required: %w", ledger.ErrInvalidQuantity)
	}
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleOrder(w, r, types.TransactionBuy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleOrder(w, r, types.TransactionSell)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request, kind types.TransactionKind) {
	start := time.Now()
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	size, err := req.size()
	if err != nil {
		s.metrics.OrdersTotal.WithLabelValues(string(kind), "rejected").Inc()
		s.writeError(w, err)
		return
	}

	portfolioId, err := s.engine.ResolveActivePortfolio(r.Context(), uid)
	if err != nil {
		s.metrics.OrdersTotal.WithLabelValues(string(kind), "rejected").Inc()
		s.writeError(w, err)
		return
	}

	var result types.OrderResult
	if kind == types.TransactionBuy {
		result, err = s.engine.Buy(r.Context(), uid, portfolioId, req.Ticker, size)
	} else {
		result, err = s.engine.Sell(r.Context(), uid, portfolioId, req.Ticker, size)
	}
	s.metrics.OrderDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.OrdersTotal.WithLabelValues(string(kind), "rejected").Inc()
		s.writeError(w, err)
		return
	}
	s.metrics.OrdersTotal.WithLabelValues(string(kind), "committed").Inc()
	writeJSON(w, http.StatusCreated, result)
}

type createPortfolioRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	var req createPortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "portfolio name required"})
		return
	}
	p, err := s.engine.CreatePortfolio(r.Context(), uid, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	portfolios, err := s.engine.Portfolios(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"portfolios": portfolios})
}

type switchPortfolioRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSwitchPortfolio(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	var req switchPortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "portfolio name required"})
		return
	}
	p, err := s.engine.SwitchPortfolio(r.Context(), uid, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	portfolioId, err := s.engine.ResolveActivePortfolio(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.engine.Holdings(r.Context(), portfolioId)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCurrentTransactions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	portfolioId, err := s.engine.ResolveActivePortfolio(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	txns, err := s.engine.Transactions(r.Context(), portfolioId)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func (s *Server) handleAllTransactions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	grouped, err := s.engine.TransactionsByUser(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// JSON object keys must be strings.
	out := make(map[string][]types.Transaction, len(grouped))
	for portfolioId, txns := range grouped {
		out[strconv.FormatInt(portfolioId, 10)] = txns
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.engine.Prices(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": quotes})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	quote, err := s.engine.Price(r.Context(), mux.Vars(r)["ticker"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	if err := s.engine.Reset(r.Context(), uid); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "all portfolio data reset", "userId": uid})
}
