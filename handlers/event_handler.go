package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"ticket-pay/internal/store"
	"ticket-pay/models"
)

type EventHandler struct {
	store store.Store
	redis *redis.Client
}

func NewEventHandler(s store.Store, redisClient *redis.Client) *EventHandler {
	return &EventHandler{store: s, redis: redisClient}
}

// Active - ids of events currently on sale, served from the Redis set
// maintained by the event record hooks
func (h *EventHandler) Active(e *core.RequestEvent) error {
	ids, err := h.redis.SMembers(e.Request.Context(), "active_events").Result()
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Active events unavailable", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return e.JSON(http.StatusOK, map[string]any{"event_ids": ids})
}

// Availability - seats remaining for one event
func (h *EventHandler) Availability(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	doc, err := h.store.Get(e.Request.Context(), models.CollectionEvents, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apis.NewNotFoundError("Event not found", nil)
		}
		return apiError(err)
	}
	event := models.EventFromDoc(doc)

	remaining := int64(-1) // unlimited
	if event.Capacity > 0 {
		remaining = event.Capacity - event.SeatsUsed
		if remaining < 0 {
			remaining = 0
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id":           event.ID,
		"status":             event.Status,
		"capacity":           event.Capacity,
		"seats_used":         event.SeatsUsed,
		"seats_used_regular": event.SeatsUsedRegular,
		"seats_used_vip":     event.SeatsUsedVip,
		"remaining":          remaining,
	})
}
