package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/skillbook/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_booking_events_consumed_total",
		Help: "Total booking lifecycle events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_booking_events_invalid_total",
		Help: "Total invalid events received",
	})
	statusUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_status_updates_total",
		Help: "Total successful status mirror updates",
	})
	statusErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_status_errors_total",
		Help: "Total status mirror errors",
	})
	terminalStates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_terminal_states_total",
		Help: "Bookings reaching a terminal state",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, statusUpdates, statusErrors, terminalStates)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "booking-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "skillbook-consumer"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{Addr: redisAddr})
	writer := &redisStatusWriter{c: rc}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			// readiness: check redis connectivity
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	log.Printf("consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()

		var ev models.BookingEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.SubmissionID == "" {
			msgsInvalid.Inc()
			log.Printf("invalid event: %v", err)
			continue
		}

		if err := updateStatusWithRetry(ctx, writer, &ev, 3, 200*time.Millisecond); err != nil {
			statusErrors.Inc()
			log.Printf("status update failed for submission=%s: %v", ev.SubmissionID, err)
			continue
		}
		statusUpdates.Inc()
		if ev.State == models.StateSuccess || ev.State == models.StateFailed {
			terminalStates.WithLabelValues(string(ev.State)).Inc()
		}
	}
}

// StatusWriter defines the small subset of redis operations we need for tests and production.
type StatusWriter interface {
	SetStatus(ctx context.Context, submissionID string, fields map[string]interface{}) error
}

type redisStatusWriter struct{ c *redis.Client }

func (r *redisStatusWriter) SetStatus(ctx context.Context, submissionID string, fields map[string]interface{}) error {
	_, err := r.c.HSet(ctx, "booking:meta:"+submissionID, fields).Result()
	return err
}

// updateStatusWithRetry mirrors an event into the status store with retry/backoff.
func updateStatusWithRetry(ctx context.Context, w StatusWriter, ev *models.BookingEvent, attempts int, delay time.Duration) error {
	fields := map[string]interface{}{
		"state":      string(ev.State),
		"session_id": ev.SessionID,
		"method":     string(ev.Method),
		"cause":      ev.Cause,
		"updated":    ev.At.Format(time.RFC3339),
	}
	for i := 0; i < attempts; i++ {
		if err := w.SetStatus(ctx, ev.SubmissionID, fields); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		return nil
	}
	return nil
}
