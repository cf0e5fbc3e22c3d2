package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/relaychat/notifier/internal/models"
)

// FanoutEngine consumes message-created events. Implementations never return
// errors: a fan-out either runs or decides there is nothing to do.
type FanoutEngine interface {
	HandleChannelMessage(ctx context.Context, ev *models.ChannelMessageEvent)
	HandleThreadMessage(ctx context.Context, ev *models.ThreadMessageEvent)
	HandleDMMessage(ctx context.Context, ev *models.DMMessageEvent)
}

// EventHandler receives the chat layer's message-created triggers. Delivery
// is at least once, so every request is ACKed with 202 no matter what: a
// NACK would only cause a retry of something that can never succeed (bad
// payload) or that already ran (slow fan-out). Bad input is reported in the
// body as accepted=false and dropped.
type EventHandler struct {
	engine  FanoutEngine
	timeout time.Duration
	log     zerolog.Logger
}

// NewEventHandler creates a new EventHandler. Each accepted event runs its
// fan-out on a fresh goroutine bounded by the given invocation timeout.
func NewEventHandler(engine FanoutEngine, timeout time.Duration, log zerolog.Logger) *EventHandler {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &EventHandler{engine: engine, timeout: timeout, log: log}
}

// RegisterEventRoutes registers the event intake routes
func (h *EventHandler) RegisterEventRoutes(g *echo.Group) {
	g.POST("/events/channel-message", h.ChannelMessage)
	g.POST("/events/thread-message", h.ThreadMessage)
	g.POST("/events/dm-message", h.DMMessage)
}

// ChannelMessage accepts a channel message-created event
func (h *EventHandler) ChannelMessage(c echo.Context) error {
	var ev models.ChannelMessageEvent
	if err := c.Bind(&ev); err != nil {
		return h.rejected(c, "malformed payload")
	}
	validate := validator.New()
	if err := validate.Struct(&ev); err != nil {
		return h.rejected(c, "missing required fields")
	}
	h.spawn(func(ctx context.Context) { h.engine.HandleChannelMessage(ctx, &ev) })
	return h.accepted(c)
}

// ThreadMessage accepts a thread message-created event
func (h *EventHandler) ThreadMessage(c echo.Context) error {
	var ev models.ThreadMessageEvent
	if err := c.Bind(&ev); err != nil {
		return h.rejected(c, "malformed payload")
	}
	validate := validator.New()
	if err := validate.Struct(&ev); err != nil {
		return h.rejected(c, "missing required fields")
	}
	h.spawn(func(ctx context.Context) { h.engine.HandleThreadMessage(ctx, &ev) })
	return h.accepted(c)
}

// DMMessage accepts a direct-message message-created event
func (h *EventHandler) DMMessage(c echo.Context) error {
	var ev models.DMMessageEvent
	if err := c.Bind(&ev); err != nil {
		return h.rejected(c, "malformed payload")
	}
	validate := validator.New()
	if err := validate.Struct(&ev); err != nil {
		return h.rejected(c, "missing required fields")
	}
	h.spawn(func(ctx context.Context) { h.engine.HandleDMMessage(ctx, &ev) })
	return h.accepted(c)
}

// spawn runs one fan-out invocation detached from the request, with its own
// deadline and a recover guard so nothing escapes to the trigger.
func (h *EventHandler) spawn(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				h.log.Error().Interface("panic", r).Msg("fan-out invocation panicked")
			}
		}()
		fn(ctx)
	}()
}

func (h *EventHandler) accepted(c echo.Context) error {
	return c.JSON(http.StatusAccepted, echo.Map{
		"success": true,
		"data":    echo.Map{"accepted": true},
	})
}

func (h *EventHandler) rejected(c echo.Context, reason string) error {
	h.log.Debug().Str("reason", reason).Str("path", c.Path()).Msg("event dropped")
	return c.JSON(http.StatusAccepted, echo.Map{
		"success": true,
		"data":    echo.Map{"accepted": false, "reason": reason},
	})
}
