package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/esports-booking/services"
)

type AdminHandler struct {
	adminService        services.AdminService
	notificationService services.NotificationService
}

func NewAdminHandler(as services.AdminService, ns services.NotificationService) *AdminHandler {
	return &AdminHandler{adminService: as, notificationService: ns}
}

// CreateSubAdmin godoc
// @Summary Добавить sub-admin
// @Description Только владелец. Если аккаунта с таким email нет, он создается с указанным паролем.
// @Tags admin
// @Accept json
// @Produce json
// @Param input body services.CreateSubAdminInput true "Sub-admin"
// @Success 201 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /admin/staff [post]
func (h *AdminHandler) CreateSubAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input services.CreateSubAdminInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	admin, err := h.adminService.CreateSubAdmin(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"admin": admin}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) ListSubAdmins(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	admins, err := h.adminService.ListSubAdmins(r.Context(), actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"admins": admins}, nil)
}

func (h *AdminHandler) DeleteSubAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "adminID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.adminService.DeleteSubAdmin(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	logs, err := h.adminService.ListLogs(r.Context(), actor, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"logs": logs}, nil)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	users, err := h.adminService.ListUsers(r.Context(), actor, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"users": users}, nil)
}

// SendNotification - личное сообщение игроку от админа.
func (h *AdminHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Message == "" {
		badRequestResponse(w, r, errors.New("message is required"))
		return
	}

	notification, err := h.notificationService.SendCustom(r.Context(), actor, userID, input.Title, input.Message)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"notification": notification}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
