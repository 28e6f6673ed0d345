package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"payos-gateway/internal/config"
	"payos-gateway/internal/infra/api"
	"payos-gateway/internal/infra/logging"
	"payos-gateway/internal/infra/metrics"
	"payos-gateway/payos"
)

// WebhookVerifier is the slice of the payos client the listener needs.
type WebhookVerifier interface {
	VerifyPaymentWebhookData(wh payos.Webhook) (*payos.WebhookData, error)
}

// ReplayGuard reports whether a verified delivery is being seen for the
// first time.
type ReplayGuard interface {
	MarkProcessed(ctx context.Context, orderCode int64, reference string) (bool, error)
	Unmark(ctx context.Context, orderCode int64, reference string) error
}

// PaymentHandler is invoked once per verified, non-replayed delivery.
// Returning an error answers the gateway with a 5xx so it redelivers.
type PaymentHandler func(ctx context.Context, data *payos.WebhookData) error

// Server receives gateway webhooks, verifies their signatures and hands the
// payloads to the application.
type Server struct {
	cfg       config.ListenerConfig
	verifier  WebhookVerifier
	guard     ReplayGuard
	onPayment PaymentHandler
	log       *zerolog.Logger
	server    *http.Server
}

func NewServer(cfg config.ListenerConfig, verifier WebhookVerifier, guard ReplayGuard, onPayment PaymentHandler, logger *zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		verifier:  verifier,
		guard:     guard,
		onPayment: onPayment,
		log:       logger,
	}
}

// Routes builds the listener's router.
func (s *Server) Routes() http.Handler {
	metrics.MustRegister()

	r := chi.NewRouter()
	r.Use(api.TraceID(s.log), api.Recover(s.log), api.RequestLog(s.log))
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post(s.cfg.WebhookPath, s.handleWebhook)
	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Routes(),
	}
	s.log.Info().Int("port", s.cfg.Port).Str("path", s.cfg.WebhookPath).Msg("webhook listener up")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := "fail"
	defer func() {
		metrics.WebhookVerifyDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	l := logging.With(r.Context(), s.log)

	var wh payos.Webhook
	if err := json.NewDecoder(r.Body).Decode(&wh); err != nil {
		metrics.WebhookVerifyRequests.WithLabelValues("fail", "bad_json").Inc()
		l.Warn().Err(err).Msg("webhook body is not valid JSON")
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	data, err := s.verifier.VerifyPaymentWebhookData(wh)
	if err != nil {
		metrics.WebhookVerifyRequests.WithLabelValues("fail", failReason(err)).Inc()
		l.Warn().Err(err).Msg("webhook verification failed")
		http.Error(w, "verification failed", http.StatusBadRequest)
		return
	}

	ctx := logging.WithOrderCode(r.Context(), data.OrderCode)
	l = logging.With(ctx, s.log)

	first, err := s.guard.MarkProcessed(ctx, data.OrderCode, data.Reference)
	if err != nil {
		// Treat the delivery as fresh when the guard is unreachable: a
		// duplicate hand-off beats a dropped payment.
		l.Warn().Err(err).Msg("replay guard unavailable")
		first = true
	}
	if !first {
		result = "ok"
		metrics.WebhookVerifyRequests.WithLabelValues("ok", "").Inc()
		metrics.WebhookReplayTotal.Inc()
		l.Info().Str("reference", data.Reference).Msg("webhook replay acknowledged")
		writeAck(w)
		return
	}

	if s.onPayment != nil {
		if err := s.onPayment(ctx, data); err != nil {
			// Drop the marker so the gateway's redelivery is not mistaken
			// for a replay.
			if uerr := s.guard.Unmark(ctx, data.OrderCode, data.Reference); uerr != nil {
				l.Warn().Err(uerr).Msg("failed to unmark delivery")
			}
			metrics.WebhookVerifyRequests.WithLabelValues("fail", "handler_error").Inc()
			l.Error().Err(err).Msg("payment handler failed")
			http.Error(w, "handler error", http.StatusInternalServerError)
			return
		}
	}

	result = "ok"
	metrics.WebhookVerifyRequests.WithLabelValues("ok", "").Inc()
	l.Info().
		Str("reference", data.Reference).
		Int64("amount", data.Amount).
		Msg("payment webhook processed")
	writeAck(w)
}

func failReason(err error) string {
	switch {
	case errors.Is(err, payos.ErrNoData):
		return "no_data"
	case errors.Is(err, payos.ErrNoSignature):
		return "no_signature"
	case errors.Is(err, payos.ErrDataNotIntegrity):
		return "bad_signature"
	default:
		return "unknown"
	}
}

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
