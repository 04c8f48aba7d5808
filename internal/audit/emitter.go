package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-bootstrap/internal/client"
	"auth-bootstrap/internal/models"
	"auth-bootstrap/internal/util"
)

// Emitter publishes auth events to the audit stream. A nil producer makes
// every emit a no-op, so callers never branch on whether Kafka is wired.
type Emitter struct {
	producer *client.KafkaProducer
	logger   *zap.Logger
}

func NewEmitter(producer *client.KafkaProducer, logger *zap.Logger) *Emitter {
	return &Emitter{producer: producer, logger: logger}
}

// Emit publishes a single event. Failure is logged and swallowed: audit loss
// must never interfere with the login flow.
func (e *Emitter) Emit(ctx context.Context, eventType, userID, identifier, details string) {
	if e == nil || e.producer == nil {
		return
	}

	event := models.AuthEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		EventTime:  time.Now().UTC(),
		UserID:     userID,
		Identifier: identifier,
		Details:    details,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to marshal auth event", zap.Error(err))
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := e.producer.WriteMessage(writeCtx, []byte(eventType), payload); err != nil {
		util.Warn("Failed to publish auth event",
			zap.String("event_type", eventType),
			zap.Error(err))
		return
	}

	util.Debug("Auth event published",
		zap.String("event_type", eventType),
		zap.String("event_id", event.EventID))
}
