// Package api exposes the discovery control surface over HTTP.
//
// All /discovery routes expect an x-user-id header forwarded by the web app.
//
// Routes:
//
//	POST /discovery/start   → start the loop for the calling subscriber
//	POST /discovery/stop    → stop the loop, waiting for the current cycle
//	GET  /discovery/status  → IDLE|RUNNING plus the last cycle summary
//	GET  /health            → liveness
//	GET  /metrics           → prometheus
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/model"
	"gigalert/discovery-service/internal/scheduler"
	"gigalert/discovery-service/internal/subscriber"
)

const userIDHeader = "x-user-id"

// Controller is the Runner surface the handler drives.
type Controller interface {
	Start(job model.Job) error
	Stop()
	Status() scheduler.Status
}

// Handler holds shared dependencies.
type Handler struct {
	runner       Controller
	directory    subscriber.Directory
	token        string // Telegram bot token
	defaultPages int
	log          logger.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(runner Controller, directory subscriber.Directory, token string, defaultPages int, log logger.Logger) *Handler {
	return &Handler{
		runner:       runner,
		directory:    directory,
		token:        token,
		defaultPages: defaultPages,
		log:          log.With(logger.String("component", "api")),
	}
}

type startRequest struct {
	Pages int `json:"pages" binding:"omitempty,min=1,max=100"`
}

// StartDiscovery handles POST /discovery/start.
func (h *Handler) StartDiscovery(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		jsonError(c, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body startRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		jsonError(c, err.Error(), http.StatusBadRequest)
		return
	}
	pages := body.Pages
	if pages == 0 {
		pages = h.defaultPages
	}

	sub, err := h.directory.Lookup(c.Request.Context(), userID)
	switch {
	case errors.Is(err, subscriber.ErrSubscriberNotFound):
		jsonError(c, "subscriber not found", http.StatusNotFound)
		return
	case err != nil:
		h.log.Error("Subscriber lookup failed", logger.String("owner_id", userID), logger.Error(err))
		jsonError(c, "database error", http.StatusInternalServerError)
		return
	}
	if err := subscriber.Eligible(sub); err != nil {
		jsonError(c, "subscription required", http.StatusForbidden)
		return
	}

	err = h.runner.Start(model.Job{
		Pages:    pages,
		Keywords: sub.Keywords,
		Token:    h.token,
		ChatID:   sub.ChatID,
		OwnerID:  sub.ID,
	})
	switch {
	case errors.Is(err, scheduler.ErrChannelNotLinked):
		jsonError(c, "channel not linked", http.StatusBadRequest)
		return
	case errors.Is(err, scheduler.ErrNoPages):
		jsonError(c, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, scheduler.ErrMissingToken):
		h.log.Error("Start refused: TELEGRAM_TOKEN is not configured")
		jsonError(c, "notification channel not configured", http.StatusServiceUnavailable)
		return
	case err != nil:
		jsonError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonOK(c, h.runner.Status())
}

// StopDiscovery handles POST /discovery/stop. It returns once the loop has exited.
func (h *Handler) StopDiscovery(c *gin.Context) {
	if c.GetHeader(userIDHeader) == "" {
		jsonError(c, "missing x-user-id header", http.StatusUnauthorized)
		return
	}
	h.runner.Stop()
	jsonOK(c, h.runner.Status())
}

// DiscoveryStatus handles GET /discovery/status.
func (h *Handler) DiscoveryStatus(c *gin.Context) {
	jsonOK(c, h.runner.Status())
}

func jsonOK(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}

func jsonError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}
