package handlers

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/Dosada05/pong-arena/brackets"
	"github.com/Dosada05/pong-arena/services"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub               *brackets.Hub
	tournamentService services.TournamentService
	upgrader          websocket.Upgrader
	logger            *slog.Logger
}

// NewWebSocketHandler accepts upgrades from allowedOrigins; "*" allows any.
func NewWebSocketHandler(hub *brackets.Hub, ts services.TournamentService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:               hub,
		tournamentService: ts,
		logger:            logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ServeWs subscribes the connection to /ws/tournaments/{roomID}. The current
// snapshot is sent first so spectators do not wait for the next transition.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.tournamentService.GetRoom(r.Context(), roomID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Int("room_id", roomID), slog.Any("error", err))
		return
	}

	client := brackets.NewClient(h.hub, conn, roomID)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.hub.SendTo(client, brackets.MessageRoomUpdated, room)
}
