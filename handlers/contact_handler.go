package handlers

import (
	"net/http"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/services"
)

type ContactHandler struct {
	contactService services.ContactService
}

func NewContactHandler(cs services.ContactService) *ContactHandler {
	return &ContactHandler{contactService: cs}
}

// Submit godoc
// @Summary Написать в поддержку
// @Description Доступно без входа; для вошедшего игрока обращение привязывается к аккаунту.
// @Tags contact
// @Accept json
// @Produce json
// @Param input body services.ContactInput true "Обращение"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /contact [post]
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var input services.ContactInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var actorPtr *models.Actor
	if actor, ok := currentActor(r); ok {
		actorPtr = &actor
	}

	msg, err := h.contactService.Submit(r.Context(), actorPtr, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"message": msg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var status *models.ContactStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := models.ContactStatus(s)
		status = &st
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	messages, err := h.contactService.List(r.Context(), actor, status, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"messages": messages}, nil)
}

func (h *ContactHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	messages, err := h.contactService.ListForUser(r.Context(), actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"messages": messages}, nil)
}

func (h *ContactHandler) Reply(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "messageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input struct {
		Reply string `json:"reply"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	msg, err := h.contactService.Reply(r.Context(), actor, id, input.Reply)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": msg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "messageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.contactService.Delete(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
