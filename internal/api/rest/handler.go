package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/cayc/incubator/internal/adapter"
	"github.com/cayc/incubator/internal/api/rest/dto"
	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/logger"
	"github.com/cayc/incubator/internal/mailer"
	"github.com/cayc/incubator/internal/messaging"
	"github.com/cayc/incubator/internal/store"
	"github.com/cayc/incubator/internal/store/schema"
)

const (
	msgMissingFields = "Missing required fields: to, subject, or body"
	msgEmailSent     = "Email sent successfully"
	msgEmailFailed   = "Failed to send email"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// SendEmail relays an incubation notification
	// POST /api/send-email
	SendEmail(c *gin.Context)

	// HealthCheck returns the health status of the relay
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	mailer    mailer.Mailer
	store     store.Store
	publisher messaging.Publisher
	json      adapter.JSON
	clock     adapter.Clock
}

// NewHandler creates a relay handler. store and publisher are optional.
func NewHandler(m mailer.Mailer, st store.Store, pub messaging.Publisher, jsonAdapter adapter.JSON, clock adapter.Clock) Handler {
	return &handler{
		mailer:    m,
		store:     st,
		publisher: pub,
		json:      jsonAdapter,
		clock:     clock,
	}
}

// SendEmail validates the request, records it, sends it over SMTP and announces the incubation
func (h *handler) SendEmail(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Complete() {
		respondBadRequest(c, msgMissingFields)
		return
	}

	now := h.clock.Now()
	eventID := ulid.MustNewDefault(now).String()
	h.record(c, eventID, req)

	err := h.mailer.Send(ctx, mailer.Message{To: req.To, Subject: req.Subject, Body: req.Body})
	if err != nil {
		if errors.Is(err, mailer.ErrInvalidMessage) {
			respondBadRequest(c, msgMissingFields)
			return
		}
		if h.store != nil {
			if serr := h.store.MarkNotificationFailed(ctx, eventID, err.Error()); serr != nil {
				logger.WarnCtx(ctx, "Failed to mark notification failed", zap.String("eventID", eventID), zap.Error(serr))
			}
		}
		respondInternalError(c, err, msgEmailFailed, zap.String("eventID", eventID), zap.String("to", req.To))
		return
	}

	if h.store != nil {
		if serr := h.store.MarkNotificationSent(ctx, eventID); serr != nil {
			logger.WarnCtx(ctx, "Failed to mark notification sent", zap.String("eventID", eventID), zap.Error(serr))
		}
	}

	if h.publisher != nil {
		event := &domain.IncubationEvent{
			EventID:   eventID,
			Recipient: req.To,
			Subject:   req.Subject,
			Body:      req.Body,
			Timestamp: now.Unix(),
		}
		if perr := h.publisher.PublishIncubation(ctx, event); perr != nil {
			logger.WarnCtx(ctx, "Failed to publish incubation event", zap.String("eventID", eventID), zap.Error(perr))
		}
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: msgEmailSent})
}

// record stores the request in the audit log. A store failure does not block delivery.
func (h *handler) record(c *gin.Context, eventID string, req dto.SendEmailRequest) {
	if h.store == nil {
		return
	}
	ctx := c.Request.Context()

	payload, err := h.json.Marshal(req)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to marshal notification payload", zap.Error(err))
		return
	}

	err = h.store.CreateNotification(ctx, &schema.Notification{
		EventID:   eventID,
		Recipient: req.To,
		Subject:   req.Subject,
		Payload:   datatypes.JSON(payload),
		Status:    schema.NotificationStatusPending,
	})
	if err != nil {
		logger.WarnCtx(ctx, "Failed to record notification", zap.String("eventID", eventID), zap.Error(err))
	}
}

// HealthCheck returns the health status of the relay
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Service: "cayc-mail-relay",
	})
}
