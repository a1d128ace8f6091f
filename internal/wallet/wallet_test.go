package wallet

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/balance" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"balance":"15.50","spark_tokens":3,"currency":"GBP"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	snap, err := c.Balance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !snap.CashAmount.Equal(decimal.RequireFromString("15.50")) {
		t.Fatalf("cash = %s", snap.CashAmount)
	}
	if !snap.TokenAmount.Equal(decimal.NewFromInt(3)) || snap.CashCurrency != "GBP" {
		t.Fatalf("snap = %+v", snap)
	}
}

func TestBalanceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, 0).Balance(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestGrantTokenAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/tokens/authorize" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"reference":"tok_abc"}`))
	}))
	defer srv.Close()

	ref, err := NewClient(srv.URL, 0).GrantTokenAuthorization(context.Background(), decimal.NewFromInt(2))
	if err != nil || ref != "tok_abc" {
		t.Fatalf("ref=%q err=%v", ref, err)
	}
}

func TestRevokeTokenAuthorization(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/tokens/revoke" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, 0).RevokeTokenAuthorization(context.Background(), "tok_abc"); err != nil {
		t.Fatal(err)
	}
	if gotBody != `{"reference":"tok_abc"}` {
		t.Fatalf("body = %s", gotBody)
	}
}
