package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"ballot-engine/internal/aggregation"
	"ballot-engine/internal/events"
	"ballot-engine/internal/services"
	"ballot-engine/internal/transport/httpdto"
	"ballot-engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// LiveSource supplies the current counts sent when a connection opens.
type LiveSource interface {
	LiveResults(pollID uuid.UUID) []aggregation.ChoiceCount
}

type Handler struct {
	auth       *services.AuthService
	hub        *Hub
	authorizer *ChannelAuthorizer
	live       LiveSource
	logger     *logger.Logger
	upgrader   websocket.Upgrader
}

func NewHandler(auth *services.AuthService, hub *Hub, authorizer *ChannelAuthorizer, live LiveSource, l *logger.Logger) *Handler {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Handler{
		auth:       auth,
		hub:        hub,
		authorizer: authorizer,
		live:       live,
		logger:     l,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func bearerOrQuery(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Connect upgrades the request and streams live results of the poll in the path.
func (h *Handler) Connect(c *gin.Context) {
	claims, err := h.auth.ParseAccessToken(bearerOrQuery(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid poll id", "INVALID_REQUEST"))
		return
	}
	if h.authorizer != nil {
		ok, err := h.authorizer.CanWatch(c.Request.Context(), pollID, claims.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("poll not found", "NOT_FOUND"))
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, strings.TrimSpace(claims.ParticipantID))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.PollChannel(pollID.String()))
	go client.WriteLoop(ctx)

	if h.live != nil {
		results := h.live.LiveResults(pollID)
		update := services.LiveUpdate{PollID: pollID, Results: results}
		for _, r := range results {
			update.Total += r.Count
		}
		if payload, err := json.Marshal(update); err == nil {
			client.SendMessage(payload)
		}
	}
	h.logger.Logger.Debug("live results connected",
		zap.String("client_id", client.ID), zap.String("poll_id", pollID.String()))

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}

	h.hub.Unregister(client)
}
