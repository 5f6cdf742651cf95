package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"AegisVault/internal/audit"
	"AegisVault/internal/auth"
	"AegisVault/internal/vault"
)

var (
	testOwner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testGuardian  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	testAgent     = common.HexToAddress("0x0000000000000000000000000000000000000003")
	testDepositor = common.HexToAddress("0x000000000000000000000000000000000000000a")
)

func newTestServer(t *testing.T, authSvc *auth.Service) *Server {
	t.Helper()

	v, err := vault.New(vault.Params{
		Owner:          testOwner,
		Guardian:       testGuardian,
		Agent:          testAgent,
		ReferenceAsset: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		MinDeposit:     big.NewInt(100),
		SingleTxCap:    big.NewInt(50_000),
		DailyCap:       big.NewInt(100_000),
	}, audit.NewLog())
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	return NewServer("127.0.0.1:0", v, authSvc)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestDepositAndStatusRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)
	handler := s.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/deposits",
		`{"depositor":"`+testDepositor.Hex()+`","amount":"1000"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit status = %d, body %s", rec.Code, rec.Body.String())
	}
	var dep depositResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dep); err != nil {
		t.Fatalf("decode deposit response: %v", err)
	}
	if dep.Shares != "1000" {
		t.Fatalf("shares = %s, want 1000", dep.Shares)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	if status.TotalShares != "1000" || status.IdleBalance != "1000" {
		t.Fatalf("status = %+v", status)
	}
}

func TestWithdrawMapsLimitToTooManyRequests(t *testing.T) {
	s := newTestServer(t, nil)
	handler := s.Handler()

	doJSON(t, handler, http.MethodPost, "/api/v1/deposits",
		`{"depositor":"`+testDepositor.Hex()+`","amount":"200000"}`)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/withdrawals",
		`{"withdrawer":"`+testDepositor.Hex()+`","shares":"60000"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("oversize withdrawal status = %d, want 429; body %s", rec.Code, rec.Body.String())
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["code"] != "LIMIT_EXCEEDED" {
		t.Fatalf("error code = %q, want LIMIT_EXCEEDED", payload["code"])
	}
}

func TestValidationErrorsMapToBadRequest(t *testing.T) {
	s := newTestServer(t, nil)
	handler := s.Handler()

	for _, body := range []string{
		`{"depositor":"","amount":"1000"}`,
		`{"depositor":"` + testDepositor.Hex() + `","amount":"-5"}`,
		`{"depositor":"` + testDepositor.Hex() + `","amount":"abc"}`,
		`not json`,
	} {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/deposits", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q -> status %d, want 400", body, rec.Code)
		}
	}
}

func TestEventsReplaySinceSequence(t *testing.T) {
	s := newTestServer(t, nil)
	handler := s.Handler()

	for _, amount := range []string{"1000", "2000", "3000"} {
		doJSON(t, handler, http.MethodPost, "/api/v1/deposits",
			`{"depositor":"`+testDepositor.Hex()+`","amount":"`+amount+`"}`)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/events?since=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("events status = %d", rec.Code)
	}
	var events []audit.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events after seq 1, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("event sequences = %d, %d, want 2, 3", events[0].Seq, events[1].Seq)
	}
}

func TestAuthGatesAdminEndpoints(t *testing.T) {
	authSvc := auth.NewService(auth.ModeStatic, []auth.KeyEntry{
		{Key: "guardian-key", Subject: auth.Subject{Name: "ops", Address: testGuardian, Roles: []string{auth.RoleGuardian}}},
		{Key: "viewer-key", Subject: auth.Subject{Name: "dash", Address: testDepositor, Roles: []string{auth.RoleViewer}}},
	})
	s := newTestServer(t, authSvc)
	handler := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pause", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous pause = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/pause", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer viewer-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer pause = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/pause", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer guardian-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("guardian pause = %d, want 204; body %s", rec.Code, rec.Body.String())
	}
}
