package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/skillbook/internal/booking"
	"github.com/example/skillbook/internal/catalog"
	"github.com/example/skillbook/internal/config"
	"github.com/example/skillbook/internal/dispatch"
	"github.com/example/skillbook/internal/geo"
	"github.com/example/skillbook/internal/ingest"
	"github.com/example/skillbook/internal/models"
	"github.com/example/skillbook/internal/observability"
	"github.com/example/skillbook/internal/payments"
	"github.com/example/skillbook/internal/position"
	"github.com/example/skillbook/internal/proximity"
	"github.com/example/skillbook/internal/session"
	"github.com/example/skillbook/internal/storage"
	"github.com/example/skillbook/internal/wallet"
)

type Server struct {
	Sessions  session.Store
	Proximity *proximity.Client
	Catalog   *catalog.Client
	Wallet    *wallet.Client
	Auth      payments.Authorizer
	Bookings  booking.Submitter
	Store     storage.SubmissionStore
	Kafka     *ingest.KafkaProducer
	WSReg     *dispatch.WSRegistry

	cfg    config.ServerConfig
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	var sessions session.Store
	if cfg.RedisAddr != "" {
		sessions = session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
	} else {
		sessions = session.NewMemory()
	}

	var store storage.SubmissionStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
		} else {
			logger.Warn("postgres unavailable, submission audit in memory", "error", err)
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	s := &Server{
		Sessions:  sessions,
		Proximity: proximity.NewClient(cfg.DirectoryBaseURL, cfg.SearchTimeout),
		Catalog:   catalog.NewClient(cfg.CatalogBaseURL, cfg.SearchTimeout),
		Wallet:    wallet.NewClient(cfg.WalletBaseURL, cfg.BalanceTimeout),
		Bookings:  booking.NewClient(cfg.BookingBaseURL, cfg.SubmitTimeout),
		Store:     store,
		Kafka:     kp,
		WSReg:     dispatch.NewWSRegistry(),
		cfg:       cfg,
		logger:    logger,
		mux:       mux.NewRouter(),
	}
	s.Auth = &payments.Service{Cards: payments.NewStripeClient(), Tokens: s.Wallet}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/sessions/{session_id}/position", s.handleResolvePosition).Methods("POST")
	s.mux.HandleFunc("/api/v1/sessions/{session_id}/people", s.handleSearchPeople).Methods("GET")
	s.mux.HandleFunc("/api/v1/categories", s.handleCategories).Methods("GET")
	s.mux.HandleFunc("/api/v1/categories/featured", s.handleFeaturedCategories).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings", s.handleCreateBooking).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{session_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// clientFix replays a device fix the mobile app captured; the sensor itself
// lives on the phone, the fallback chain lives here.
type clientFix struct {
	coord *geo.Coord
}

func (c *clientFix) RequestFix(ctx context.Context, highAccuracy bool) (geo.Coord, error) {
	if c.coord == nil {
		return geo.Coord{}, errors.New("no device fix supplied")
	}
	return *c.coord, nil
}

type resolveRequest struct {
	DeviceFix *geo.Coord      `json:"device_fix,omitempty"`
	Profile   json.RawMessage `json:"profile,omitempty"`
}

func (s *Server) handleResolvePosition(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var profile *geo.Coord
	if c, ok := geo.ParseProfileCoordinate(req.Profile); ok {
		profile = &c
	}

	resolver := &position.Resolver{Locator: &clientFix{coord: req.DeviceFix}, FixTimeout: s.cfg.FixTimeout}
	pos := resolver.Resolve(r.Context(), profile)
	s.Sessions.Put(sessionID, pos)
	observability.PositionResolutions.WithLabelValues(string(pos.Source)).Inc()

	writeJSON(w, http.StatusOK, pos)
}

type peopleResponse struct {
	People      []models.NearbyPerson `json:"people"`
	Page        int                   `json:"page"`
	PageNumbers []int                 `json:"page_numbers"`
}

func (s *Server) handleSearchPeople(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	q := r.URL.Query()

	bucket, err := proximity.ParseBucket(q.Get("bucket"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter := proximity.Filter{CityToken: q.Get("city"), Bucket: bucket}

	pos, _ := s.Sessions.Get(sessionID) // absent session resolves as SourceNone

	people, err := s.Proximity.Search(r.Context(), pos, filter)
	switch {
	case errors.Is(err, proximity.ErrPositionNotReady):
		http.Error(w, "position not ready for radius search", http.StatusConflict)
		return
	case errors.Is(err, proximity.ErrStaleResponse):
		// superseded by a newer query from the same client; nothing to render
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		http.Error(w, "directory unavailable, retry later", http.StatusBadGateway)
		return
	}

	if q.Get("featured") == "true" {
		writeJSON(w, http.StatusOK, proximity.FeaturedSubset(people, catalog.PageSize))
		return
	}

	page := 1
	if p := q.Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page = n
		}
	}
	total := (len(people) + catalog.PageSize - 1) / catalog.PageSize
	if total < 1 {
		total = 1
	}
	if page > total {
		page = total
	}
	lo := (page - 1) * catalog.PageSize
	hi := lo + catalog.PageSize
	if hi > len(people) {
		hi = len(people)
	}
	writeJSON(w, http.StatusOK, peopleResponse{
		People:      people[lo:hi],
		Page:        page,
		PageNumbers: catalog.PageNumbers(page, total),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page = n
		}
	}
	cp, err := s.Catalog.Page(r.Context(), page)
	if err != nil {
		http.Error(w, "catalog unavailable, retry later", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories":   cp.Categories,
		"page":         cp.Page,
		"total_pages":  cp.TotalPages,
		"page_numbers": catalog.PageNumbers(cp.Page, cp.TotalPages),
	})
}

func (s *Server) handleFeaturedCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.Catalog.Featured(r.Context(), catalog.PageSize)
	if err != nil {
		http.Error(w, "catalog unavailable, retry later", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

type createBookingRequest struct {
	SessionID string               `json:"session_id"`
	Draft     models.BookingDraft  `json:"draft"`
	Skill     models.Skill         `json:"skill"`
	Method    models.PaymentMethod `json:"method,omitempty"`
}

type createBookingResponse struct {
	State        models.SubmissionState `json:"state"`
	Options      []models.PaymentOption `json:"options,omitempty"`
	Insufficient bool                   `json:"insufficient_funds,omitempty"`
	Confirmation *booking.Confirmation  `json:"confirmation,omitempty"`
	Retryable    bool                   `json:"retryable,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flow := booking.NewFlow()
	flow.Balances = s.Wallet
	flow.Auth = s.Auth
	flow.Submitter = s.Bookings
	flow.Store = s.Store
	flow.Dispatch = s.WSReg
	flow.Logger = s.logger
	flow.SessionID = req.SessionID
	if s.Kafka != nil {
		flow.Events = s.Kafka
	}
	if pos, ok := s.Sessions.Get(req.SessionID); ok {
		flow.Coord = pos.Coord
	}

	options, err := flow.Begin(r.Context(), req.Draft, req.Skill)
	if errors.Is(err, booking.ErrInvalidDraft) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Method == "" {
		// caller only wanted the eligibility picture
		writeJSON(w, http.StatusOK, createBookingResponse{
			State:        flow.State(),
			Options:      options,
			Insufficient: flow.InsufficientFunds(),
		})
		return
	}

	conf, err := flow.Choose(r.Context(), req.Method)
	switch {
	case errors.Is(err, booking.ErrMethodNotEligible):
		writeJSON(w, http.StatusUnprocessableEntity, createBookingResponse{
			State:        flow.State(),
			Options:      options,
			Insufficient: flow.InsufficientFunds(),
			Error:        err.Error(),
		})
		return
	case err != nil:
		// draft preserved server-side reporting only; the client keeps its copy
		writeJSON(w, http.StatusBadGateway, createBookingResponse{
			State:     flow.State(),
			Options:   options,
			Retryable: true,
			Error:     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, createBookingResponse{State: flow.State(), Confirmation: &conf})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(id, conn)

	// the read pump exists only to detect the peer going away; clients never
	// send anything on this socket
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.WSReg.Remove(id)
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
