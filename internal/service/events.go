package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
	"github.com/netocloud/slack-relay/internal/biz/usecase"
	"github.com/netocloud/slack-relay/internal/metrics"
)

// Ack is the synchronous answer to one webhook delivery
type Ack struct {
	StatusCode int
	Body       map[string]string
}

func status(code int, s string) Ack {
	return Ack{StatusCode: code, Body: map[string]string{"status": s}}
}

func failure(code int, msg string) Ack {
	return Ack{StatusCode: code, Body: map[string]string{"error": msg}}
}

// Delivery outcomes recorded in metrics.DeliveriesTotal
const (
	outcomeUnauthorized  = "unauthorized"
	outcomeMisconfigured = "misconfigured"
	outcomeInvalid       = "invalid"
	outcomeChallenge     = "challenge"
	outcomeDuplicate     = "duplicate"
	outcomeIgnored       = "ignored"
	outcomeProcessed     = "processed"
	outcomeFailed        = "failed"
)

// EventService handles Slack Events API deliveries end to end:
// verify, decode, deduplicate, route, relay, classify the outcome.
type EventService struct {
	verifier    *usecase.SignatureVerifier
	dedup       *usecase.Deduplicator
	filterUC    *usecase.FilterUsecase
	relayUC     *usecase.RelayUsecase
	messageRepo repo.MessageRepo
	logger      *slog.Logger
}

// NewEventService creates a new event service
func NewEventService(
	verifier *usecase.SignatureVerifier,
	dedup *usecase.Deduplicator,
	filterUC *usecase.FilterUsecase,
	relayUC *usecase.RelayUsecase,
	messageRepo repo.MessageRepo,
	logger *slog.Logger,
) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		verifier:    verifier,
		dedup:       dedup,
		filterUC:    filterUC,
		relayUC:     relayUC,
		messageRepo: messageRepo,
		logger:      logger.With(slog.String("component", "events")),
	}
}

// HandleDelivery processes one delivery and returns the acknowledgment.
// An admitted key is retracted when processing fails, so a platform retry
// is processed again; authentication and validation failures never admit.
func (s *EventService) HandleDelivery(ctx context.Context, d domain.InboundDelivery) (ack Ack) {
	log := s.logger.With(slog.String("delivery_id", uuid.NewString()))

	if err := s.verifier.Verify(d.Body, d.Signature, d.Timestamp); err != nil {
		return s.rejectUnverified(log, d, err)
	}

	env, err := domain.DecodeEnvelope(d.Body)
	if err != nil {
		log.Warn("invalid payload", slog.Any("error", err))
		metrics.DeliveriesTotal.WithLabelValues(outcomeInvalid).Inc()
		return failure(http.StatusBadRequest, "Invalid JSON")
	}

	switch env.Type {
	case domain.EnvelopeURLVerification:
		log.Info("url verification challenge")
		metrics.DeliveriesTotal.WithLabelValues(outcomeChallenge).Inc()
		return Ack{StatusCode: http.StatusOK, Body: map[string]string{"challenge": env.Challenge}}
	case domain.EnvelopeEventCallback:
	default:
		log.Info("envelope ignored", slog.String("type", env.Type))
		metrics.DeliveriesTotal.WithLabelValues(outcomeIgnored).Inc()
		return status(http.StatusOK, usecase.StatusIgnoredEventType)
	}

	key := env.Key()
	if key.IsZero() {
		metrics.DeliveriesTotal.WithLabelValues(outcomeInvalid).Inc()
		return failure(http.StatusBadRequest, "Missing event_id")
	}
	log = log.With(slog.String("event_key", key.String()))

	if !s.dedup.Admit(key) {
		log.Info("duplicate delivery")
		metrics.DeliveriesTotal.WithLabelValues(outcomeDuplicate).Inc()
		return status(http.StatusOK, "already_processed")
	}
	metrics.DedupKeys.Set(float64(s.dedup.Len()))

	// A dropped connection must not abort a delivery that was already admitted
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("delivery panic: %v", r)
			ack = s.fail(log, key, err)
		}
	}()

	msg, reason := s.filterUC.Route(env.Event, s.botUserID(ctx, log, env.Event))
	if msg == nil {
		log.Info("event ignored", slog.String("reason", reason))
		metrics.DeliveriesTotal.WithLabelValues(outcomeIgnored).Inc()
		return status(http.StatusOK, reason)
	}

	if err := s.relayUC.Process(ctx, msg); err != nil {
		return s.fail(log, key, err)
	}

	metrics.DeliveriesTotal.WithLabelValues(outcomeProcessed).Inc()
	return status(http.StatusOK, "ok")
}

func (s *EventService) rejectUnverified(log *slog.Logger, d domain.InboundDelivery, err error) Ack {
	if errors.Is(err, domain.ErrConfiguration) {
		log.Error("signature verification unavailable", slog.Any("error", err))
		metrics.DeliveriesTotal.WithLabelValues(outcomeMisconfigured).Inc()
		return failure(http.StatusInternalServerError, "Server configuration error")
	}

	metrics.DeliveriesTotal.WithLabelValues(outcomeUnauthorized).Inc()
	if d.Signature == "" || d.Timestamp == "" {
		log.Warn("missing signature headers")
		return failure(http.StatusUnauthorized, "Missing signature or timestamp")
	}
	log.Warn("invalid signature", slog.Any("error", err))
	return failure(http.StatusUnauthorized, "Invalid signature")
}

// fail classifies a processing error and releases the key when a retry should be processed
func (s *EventService) fail(log *slog.Logger, key domain.DeliveryKey, err error) Ack {
	metrics.DeliveriesTotal.WithLabelValues(outcomeFailed).Inc()

	if domain.ShouldRetract(err) {
		s.dedup.Retract(key)
		metrics.DedupRetractionsTotal.Inc()
		metrics.DedupKeys.Set(float64(s.dedup.Len()))
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		log.Warn("delivery rejected", slog.Any("error", err))
		return failure(http.StatusBadRequest, "Invalid JSON")
	case errors.Is(err, domain.ErrConfiguration):
		log.Error("delivery failed: configuration", slog.Any("error", err))
		return failure(http.StatusInternalServerError, "Server configuration error")
	default:
		log.Error("delivery failed", slog.Any("error", err))
		return failure(http.StatusInternalServerError, "Internal server error")
	}
}

// botUserID is only needed to detect mentions outside direct messages
func (s *EventService) botUserID(ctx context.Context, log *slog.Logger, event domain.MessageEvent) string {
	if s.messageRepo == nil || event.ChannelType == domain.ChannelTypeIM {
		return ""
	}
	id, err := s.messageRepo.BotUserID(ctx)
	if err != nil {
		log.Warn("bot user id unavailable", slog.Any("error", err))
		return ""
	}
	return id
}
