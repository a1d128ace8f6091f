package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/example/skillbook/internal/config"
	"github.com/example/skillbook/internal/dispatch"
	"github.com/example/skillbook/internal/models"
)

type stubAuth struct{ id string }

func (a *stubAuth) Authorize(ctx context.Context, method models.PaymentMethod, amount decimal.Decimal, currency string) (string, error) {
	return a.id, nil
}

func (a *stubAuth) Capture(ctx context.Context, method models.PaymentMethod, ref string) error {
	return nil
}

func (a *stubAuth) Release(ctx context.Context, method models.PaymentMethod, ref string) error {
	return nil
}

func newTestServer(t *testing.T, directory, wallet, bookings http.Handler) *Server {
	t.Helper()
	dirSrv := httptest.NewServer(directory)
	t.Cleanup(dirSrv.Close)
	walletSrv := httptest.NewServer(wallet)
	t.Cleanup(walletSrv.Close)
	bookSrv := httptest.NewServer(bookings)
	t.Cleanup(bookSrv.Close)

	cfg := config.ServerConfig{
		DirectoryBaseURL: dirSrv.URL,
		CatalogBaseURL:   dirSrv.URL,
		WalletBaseURL:    walletSrv.URL,
		BookingBaseURL:   bookSrv.URL,
	}
	s := NewServer(cfg, slog.Default())
	s.Auth = &stubAuth{id: "auth_1"}
	return s
}

func nop() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{}`)) })
}

// No device permission, profile coordinate (40, -73.9), bucket "6-10 mi",
// city "new-york": the resolver lands on the stored profile and the search
// issues a radius query with radius=16000 narrowed by the city token.
func TestDiscoveryEndToEnd(t *testing.T) {
	var gotPath, gotState string
	directory := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotState = r.URL.Query().Get("state")
		w.Write([]byte(`[{"id":"p1","firstname":"Ada","lastname":"Byron","photourl":"x","distance":8.1}]`))
	})
	s := newTestServer(t, directory, nop(), nop())

	body := bytes.NewBufferString(`{"profile": {"geopoint": {"latitude": 40.0, "longitude": -73.9}}}`)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/sessions/sess1/position", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d: %s", rec.Code, rec.Body)
	}
	var pos struct {
		Source models.PositionSource `json:"source"`
	}
	json.Unmarshal(rec.Body.Bytes(), &pos)
	if pos.Source != models.SourceProfile {
		t.Fatalf("source = %s, want STORED_PROFILE", pos.Source)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sessions/sess1/people?city=new-york&bucket=16000", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rec.Code, rec.Body)
	}
	if gotPath != "/people/nearby/40.000000/-73.900000/16000" || gotState != "new-york" {
		t.Fatalf("query = %s state=%s", gotPath, gotState)
	}
}

func TestRadiusSearchWithoutPositionIs409(t *testing.T) {
	called := false
	directory := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	s := newTestServer(t, directory, nop(), nop())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sessions/nobody/people?city=ny&bucket=8000", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if called {
		t.Fatal("directory must not be queried")
	}
}

func TestAllBucketWorksWithoutPosition(t *testing.T) {
	directory := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/people/within/london" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[]`))
	})
	s := newTestServer(t, directory, nop(), nop())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sessions/nobody/people?city=london&bucket=ALL", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
}

func TestBookingEndToEnd(t *testing.T) {
	wallet := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balance":"5.00","spark_tokens":3,"currency":"GBP"}`))
	})
	bookings := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"booking_id":"bk1","status":"created"}`))
	})
	s := newTestServer(t, nop(), wallet, bookings)

	reqBody, _ := json.Marshal(map[string]any{
		"session_id": "sess1",
		"draft": map[string]any{
			"provider_id": "prov1", "skill_id": "sk1",
			"description": "intro", "location_text": "Camden", "date": "2026-09-12",
		},
		"skill": map[string]any{
			"id": "sk1", "provider_id": "prov1",
			"rate_per_hour": "9.00", "currency": "GBP", "token_cost": "2",
		},
		"method": "SPARK_TOKEN",
	})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/bookings", bytes.NewReader(reqBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp createBookingResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.State != models.StateSuccess || resp.Confirmation == nil || resp.Confirmation.BookingID != "bk1" {
		t.Fatalf("resp = %+v", resp)
	}
}

// Attachment content travels base64-encoded in the JSON draft and must come
// out of the multipart thumbnails parts byte for byte.
func TestBookingAttachmentBytesSurviveToBookingService(t *testing.T) {
	wantBytes := []byte("\x89PNG fake thumbnail bytes")
	var gotName string
	var gotBytes []byte
	wallet := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balance":"5.00","spark_tokens":3,"currency":"GBP"}`))
	})
	bookings := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if files := r.MultipartForm.File["thumbnails"]; len(files) == 1 {
			gotName = files[0].Filename
			f, err := files[0].Open()
			if err != nil {
				t.Errorf("open thumbnail: %v", err)
			} else {
				gotBytes, _ = io.ReadAll(f)
				f.Close()
			}
		} else {
			t.Errorf("thumbnails parts = %d, want 1", len(files))
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"booking_id":"bk2","status":"created"}`))
	})
	s := newTestServer(t, nop(), wallet, bookings)

	reqBody, _ := json.Marshal(createBookingRequest{
		SessionID: "sess1",
		Draft: models.BookingDraft{
			ProviderID: "prov1", SkillID: "sk1",
			Description: "intro", LocationText: "Camden", Date: "2026-09-12",
			Attachments: []models.Attachment{{Name: "thumb.png", Content: wantBytes}},
		},
		Skill: models.Skill{
			ID: "sk1", ProviderID: "prov1",
			RatePerHour: decimal.RequireFromString("9.00"), Currency: "GBP",
			TokenCost: decimal.RequireFromString("2"),
		},
		Method: models.MethodSparkToken,
	})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/bookings", bytes.NewReader(reqBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if gotName != "thumb.png" || !bytes.Equal(gotBytes, wantBytes) {
		t.Fatalf("thumbnail = %q (%d bytes), want %q (%d bytes)", gotName, len(gotBytes), "thumb.png", len(wantBytes))
	}
}

func TestBookingIneligibleMethodIs422(t *testing.T) {
	wallet := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balance":"5.00","spark_tokens":1,"currency":"GBP"}`))
	})
	s := newTestServer(t, nop(), wallet, nop())

	reqBody, _ := json.Marshal(map[string]any{
		"session_id": "sess1",
		"draft": map[string]any{
			"provider_id": "prov1", "skill_id": "sk1",
			"description": "intro", "location_text": "Camden", "date": "2026-09-12",
		},
		"skill": map[string]any{
			"id": "sk1", "provider_id": "prov1",
			"rate_per_hour": "9.00", "currency": "GBP", "token_cost": "2",
		},
		"method": "WALLET",
	})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/bookings", bytes.NewReader(reqBody)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp createBookingResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Insufficient {
		t.Fatalf("resp = %+v, expected insufficient funds condition", resp)
	}
}

func TestWSDisconnectRemovesSession(t *testing.T) {
	s := newTestServer(t, nop(), nop(), nop())
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sess1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	// registration happens in the server goroutine after the handshake
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := s.WSReg.Notify("sess1", models.BookingEvent{SubmissionID: "sub1"}); err == nil {
			break
		} else if time.Now().After(deadline) {
			t.Fatalf("notify while connected: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for {
		err := s.WSReg.Notify("sess1", models.BookingEvent{SubmissionID: "sub1"})
		if errors.Is(err, dispatch.ErrNoSession) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("session still registered after disconnect, last notify err = %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
