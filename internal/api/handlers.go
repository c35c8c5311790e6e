package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"unichatclient/internal/conversation"
	"unichatclient/internal/events"
	"unichatclient/internal/models"
)

// Handler wires HTTP routes to the conversation core. It owns no state of its
// own; every request is a presentation intent.
type Handler struct {
	conv *conversation.Conversation
	hub  *events.Broadcaster
}

// NewHandler constructs a Handler instance. hub may be nil, in which case the
// events route is not registered.
func NewHandler(conv *conversation.Conversation, hub *events.Broadcaster) *Handler {
	return &Handler{conv: conv, hub: hub}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/conversation")
	api.GET("", h.getConversation)
	api.POST("/msg", h.captureInput)
	api.POST("/reset", h.resetConversation)
	if h.hub != nil {
		api.GET("/events", h.streamEvents)
	}

	turns := api.Group("/turns/:turn_id")
	turns.POST("/regenerate", h.regenerateTurn)
	turns.POST("/feedback", h.feedbackTurn)
	turns.POST("/copy", h.copyTurn)
	turns.POST("/share", h.shareTurn)
}

func (h *Handler) getConversation(c *gin.Context) {
	c.JSON(http.StatusOK, h.conv.Snapshot())
}

func (h *Handler) resetConversation(c *gin.Context) {
	h.conv.Reset()
	c.Status(http.StatusNoContent)
}

type inputRequest struct {
	Content string `json:"content"`
}

// captureInput answers with an SSE stream: "ack" once both turns are
// appended, then "done" with the resolved assistant turn.
func (h *Handler) captureInput(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sub, err := h.conv.Submit(c.Request.Context(), req.Content)
	if err != nil {
		if conversation.IsRejection(err) {
			c.JSON(http.StatusOK, gin.H{"accepted": false, "reason": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	send, ok := startSSE(c)
	if !ok {
		return
	}
	if err := send("ack", gin.H{
		"accepted":     true,
		"user_turn":    sub.UserTurn,
		"pending_turn": sub.PendingTurn,
	}); err != nil {
		return
	}

	turn, err := sub.Wait(c.Request.Context())
	switch {
	case err == nil:
		_ = send("done", gin.H{"turn": turn})
	case errors.Is(err, conversation.ErrTurnNotFound):
		_ = send("reset", gin.H{"pending_id": sub.PendingTurn.ID})
	default:
		// Client went away; the exchange still settles in the store.
		log.Debug().Err(err).Int64("pending_id", sub.PendingTurn.ID).Msg("api: stream closed before reply")
	}
}

func (h *Handler) streamEvents(c *gin.Context) {
	ch, cancel := h.hub.Subscribe(0)
	defer cancel()

	send, ok := startSSE(c)
	if !ok {
		return
	}
	if err := send("snapshot", h.conv.Snapshot()); err != nil {
		return
	}
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := send(string(ev.Kind), ev); err != nil {
				return
			}
		}
	}
}

func (h *Handler) regenerateTurn(c *gin.Context) {
	turnID, ok := parseTurnID(c)
	if !ok {
		return
	}
	turn, err := h.conv.Regenerate(turnID)
	if err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turn": turn})
}

type feedbackRequest struct {
	Kind models.Feedback `json:"kind"`
}

func (h *Handler) feedbackTurn(c *gin.Context) {
	turnID, ok := parseTurnID(c)
	if !ok {
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	turn, err := h.conv.ToggleFeedback(turnID, req.Kind)
	if err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turn": turn})
}

func (h *Handler) copyTurn(c *gin.Context) {
	turn, ok := h.lookupTurn(c)
	if !ok {
		return
	}
	if err := h.conv.Copy(turn.Content); err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"copied": true})
}

func (h *Handler) shareTurn(c *gin.Context) {
	turn, ok := h.lookupTurn(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": h.conv.Share(turn.Content)})
}

func (h *Handler) lookupTurn(c *gin.Context) (models.Turn, bool) {
	turnID, ok := parseTurnID(c)
	if !ok {
		return models.Turn{}, false
	}
	turn, found := h.conv.Turn(turnID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": conversation.ErrTurnNotFound.Error()})
		return models.Turn{}, false
	}
	return turn, true
}

func parseTurnID(c *gin.Context) (int64, bool) {
	turnID, err := strconv.ParseInt(c.Param("turn_id"), 10, 64)
	if err != nil || turnID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid turn id"})
		return 0, false
	}
	return turnID, true
}

func writeActionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrTurnNotFound):
		status = http.StatusNotFound
	case errors.Is(err, conversation.ErrInvalidFeedback):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrNoClipboard):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type sseSender func(event string, payload interface{}) error

// startSSE writes the event-stream headers and returns a sender bound to c.
func startSSE(c *gin.Context) (sseSender, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return nil, false
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	return func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}, true
}
