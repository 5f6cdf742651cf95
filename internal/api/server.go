package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"AegisVault/internal/auth"
	xerrors "AegisVault/internal/errors"
	"AegisVault/internal/observability/metrics"
	"AegisVault/internal/vault"
)

// Server exposes the vault over REST. Mutations resolve the acting address
// from the authenticated subject; the vault re-checks roles against its own
// on-chain identities.
type Server struct {
	addr  string
	vault *vault.Vault
	auth  *auth.Service
}

// NewServer constructs the API service.
func NewServer(addr string, v *vault.Vault, authSvc *auth.Service) *Server {
	return &Server{addr: addr, vault: v, auth: authSvc}
}

// Start serves HTTP until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler assembles the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	anyRole := s.guard(auth.MiddlewareConfig{AuditEvent: "vault_query"})
	depositorOnly := s.guard(auth.MiddlewareConfig{AuditEvent: "vault_mutation"})
	ownerOnly := s.guard(auth.MiddlewareConfig{
		AuditEvent:    "vault_admin",
		RequiredRoles: map[string][]string{"*": {auth.RoleOwner, auth.RoleGuardian}},
	})

	mux.Handle("/api/v1/deposits", depositorOnly(http.HandlerFunc(s.handleDeposit)))
	mux.Handle("/api/v1/withdrawals", depositorOnly(http.HandlerFunc(s.handleWithdraw)))
	mux.Handle("/api/v1/status", anyRole(http.HandlerFunc(s.handleStatus)))
	mux.Handle("/api/v1/positions", anyRole(http.HandlerFunc(s.handlePositions)))
	mux.Handle("/api/v1/limiter", anyRole(http.HandlerFunc(s.handleLimiter)))
	mux.Handle("/api/v1/events", anyRole(http.HandlerFunc(s.handleEvents)))
	mux.Handle("/api/v1/pause", ownerOnly(http.HandlerFunc(s.handlePause)))
	mux.Handle("/metrics", metrics.Handler())

	return mux
}

func (s *Server) guard(cfg auth.MiddlewareConfig) func(http.Handler) http.Handler {
	if s.auth == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.auth.Middleware(cfg)
}

type depositRequest struct {
	Depositor string `json:"depositor"`
	Asset     string `json:"asset,omitempty"`
	Amount    string `json:"amount"`
}

type depositResponse struct {
	Shares string `json:"shares"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	depositor, ok := s.actingAddress(r, req.Depositor)
	if !ok {
		http.Error(w, "depositor address is required", http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		http.Error(w, "amount must be a positive decimal integer", http.StatusBadRequest)
		return
	}

	start := time.Now()
	var shares *big.Int
	var err error
	if req.Asset != "" {
		shares, err = s.vault.DepositOtherAsset(r.Context(), depositor, common.HexToAddress(req.Asset), amount)
	} else {
		shares, err = s.vault.Deposit(r.Context(), depositor, amount)
	}
	metrics.ObserveVaultOperation("deposit", err, time.Since(start))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, depositResponse{Shares: shares.String()})
}

type withdrawRequest struct {
	Withdrawer string `json:"withdrawer"`
	Shares     string `json:"shares"`
}

type withdrawResponse struct {
	Amount string `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	withdrawer, ok := s.actingAddress(r, req.Withdrawer)
	if !ok {
		http.Error(w, "withdrawer address is required", http.StatusBadRequest)
		return
	}
	shares, ok := parseAmount(req.Shares)
	if !ok {
		http.Error(w, "shares must be a positive decimal integer", http.StatusBadRequest)
		return
	}

	start := time.Now()
	amount, err := s.vault.Withdraw(r.Context(), withdrawer, shares)
	metrics.ObserveVaultOperation("withdraw", err, time.Since(start))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{Amount: amount.String()})
}

type statusResponse struct {
	TotalShares    string `json:"total_shares"`
	TotalDeposited string `json:"total_deposited"`
	IdleBalance    string `json:"idle_balance"`
	TotalValue     string `json:"total_value"`
	Paused         bool   `json:"paused"`
	Emergency      bool   `json:"emergency"`
	BreakerTripped bool   `json:"breaker_tripped"`
	PegGuard       bool   `json:"peg_guard"`
	Depositors     int    `json:"depositors"`
	Positions      int    `json:"positions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}
	status := s.vault.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		TotalShares:    status.TotalShares.String(),
		TotalDeposited: status.TotalDeposited.String(),
		IdleBalance:    status.IdleBalance.String(),
		TotalValue:     status.TotalValue.String(),
		Paused:         status.Paused,
		Emergency:      status.Emergency,
		BreakerTripped: status.BreakerTripped,
		PegGuard:       status.PegGuard,
		Depositors:     status.Depositors,
		Positions:      status.Positions,
	})
}

type positionResponse struct {
	Pool     string `json:"pool"`
	AssetA   string `json:"asset_a"`
	AssetB   string `json:"asset_b"`
	Stable   bool   `json:"stable"`
	LPAmount string `json:"lp_amount"`
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}
	positions := s.vault.Positions()
	out := make([]positionResponse, len(positions))
	for i, pos := range positions {
		out[i] = positionResponse{
			Pool:     pos.Pool.Hex(),
			AssetA:   pos.AssetA.Hex(),
			AssetB:   pos.AssetB.Hex(),
			Stable:   pos.Stable,
			LPAmount: pos.LPAmount.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type limiterResponse struct {
	SingleTxCap    string `json:"single_tx_cap"`
	DailyCap       string `json:"daily_cap"`
	WithdrawnToday string `json:"withdrawn_today"`
	RemainingToday string `json:"remaining_today"`
}

func (s *Server) handleLimiter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}
	limiter := s.vault.Limiter()
	writeJSON(w, http.StatusOK, limiterResponse{
		SingleTxCap:    limiter.SingleTxCap.String(),
		DailyCap:       limiter.DailyCap.String(),
		WithdrawnToday: limiter.WithdrawnToday.String(),
		RemainingToday: limiter.RemainingToday.String(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}
	since := uint64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "since must be a sequence number", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	writeJSON(w, http.StatusOK, s.vault.Journal().Events(since))
}

type pauseRequest struct {
	Actor  string `json:"actor"`
	Resume bool   `json:"resume,omitempty"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	actor, ok := s.actingAddress(r, req.Actor)
	if !ok {
		http.Error(w, "actor address is required", http.StatusBadRequest)
		return
	}

	var err error
	if req.Resume {
		err = s.vault.Unpause(r.Context(), actor)
	} else {
		err = s.vault.Pause(r.Context(), actor)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actingAddress prefers the authenticated subject's on-chain identity and
// falls back to the request body when authentication is disabled.
func (s *Server) actingAddress(r *http.Request, fromBody string) (common.Address, bool) {
	if subject := auth.SubjectFromContext(r.Context()); subject != nil && subject.Address != (common.Address{}) {
		return subject.Address, true
	}
	if fromBody == "" || !common.IsHexAddress(fromBody) {
		return common.Address{}, false
	}
	return common.HexToAddress(fromBody), true
}

func parseAmount(raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, false
	}
	return amount, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch xerrors.CodeOf(err) {
	case xerrors.CodeValidation:
		status = http.StatusBadRequest
	case xerrors.CodeUnauthorized:
		status = http.StatusForbidden
	case xerrors.CodeNotFound:
		status = http.StatusNotFound
	case xerrors.CodeConflict:
		status = http.StatusConflict
	case xerrors.CodeInvalidState:
		status = http.StatusConflict
	case xerrors.CodeLimitExceeded:
		status = http.StatusTooManyRequests
	case xerrors.CodeExternalFailure, xerrors.CodeTimeout:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{
		"code":  string(xerrors.CodeOf(err)),
		"error": err.Error(),
	})
}

// withContext ties request contexts to the server lifecycle so in-flight
// handlers observe shutdown, and tags every response with a request ID.
func withContext(parent context.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			select {
			case <-parent.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
