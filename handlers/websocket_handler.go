package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/esports-booking/live"
	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/services"
)

type WebSocketHandler struct {
	hub               *live.Hub
	tournamentService services.TournamentService
	accessService     services.AccessService
	upgrader          websocket.Upgrader
}

// NewWebSocketHandler: пустой allowedOrigins разрешает любой Origin (локальная разработка).
func NewWebSocketHandler(hub *live.Hub, ts services.TournamentService, as services.AccessService, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:               hub,
		tournamentService: ts,
		accessService:     as,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// ServeTournaments - публичная лента всех матчей. Первым сообщением приходит снимок списка.
func (h *WebSocketHandler) ServeTournaments(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.tournamentService.List(r.Context(), models.Actor{}, services.TournamentListFilter{})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой.
		logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := live.NewClient(h.hub, conn, live.RoomTournaments)
	h.hub.SendTo(client, services.EventTypeTournamentsSnapshot, snapshot)
	h.hub.Register(client)
}

// ServeTournament - комната одного матча: заявки и изменения турнира.
// Клиент должен подключаться к /ws/tournaments/{tournamentID}
func (h *WebSocketHandler) ServeTournament(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	actor, _ := currentActor(r)
	tournament, err := h.tournamentService.Get(r.Context(), actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Int("tournament_id", id), slog.Any("error", err))
		return
	}

	client := live.NewClient(h.hub, conn, live.TournamentRoom(id))
	h.hub.SendTo(client, services.EventTypeTournamentUpdated, tournament)
	h.hub.Register(client)
}

// ServeMe - личная комната игрока; админ дополнительно подписывается на админскую ленту.
func (h *WebSocketHandler) ServeMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	rooms := []string{live.UserRoom(actor.UserID)}
	_, _, err := h.accessService.VerifyAdmin(r.Context(), actor.Email)
	switch {
	case err == nil:
		rooms = append(rooms, live.RoomAdmin)
	case errors.Is(err, services.ErrForbiddenOperation):
	default:
		serverErrorResponse(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Int("user_id", actor.UserID), slog.Any("error", err))
		return
	}

	h.hub.Register(live.NewClient(h.hub, conn, rooms...))
}
