package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
	}
}

// CreateHandler godoc
// @Summary Создать матч
// @Tags tournaments
// @Accept json
// @Produce json
// @Param input body services.CreateTournamentInput true "Параметры матча"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /admin/tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler godoc
// @Summary Матч по ID
// @Description Данные комнаты видны только подтвержденным участникам и админам.
// @Tags tournaments
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /tournaments/{tournamentID} [get]
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler godoc
// @Summary Список матчей
// @Tags tournaments
// @Produce json
// @Param status query string false "Open | ID Released | Completed | Cancelled"
// @Param category query string false "BR | CS"
// @Param tab query string false "live | past"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments [get]
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var filter services.TournamentListFilter
	query := r.URL.Query()

	if statusStr := query.Get("status"); statusStr != "" {
		status := models.TournamentStatus(statusStr)
		filter.Status = &status
	}
	if categoryStr := query.Get("category"); categoryStr != "" {
		category := models.TournamentCategory(categoryStr)
		filter.Category = &category
	}
	switch tab := services.TournamentTab(query.Get("tab")); tab {
	case "", services.TabLive, services.TabPast:
		filter.Tab = tab
	default:
		badRequestResponse(w, r, errors.New("invalid tab query parameter"))
		return
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 50); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	actor, _ := currentActor(r)
	tournaments, err := h.tournamentService.List(r.Context(), actor, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.tournamentService.Delete(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TournamentHandler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input struct {
		Status models.TournamentStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Status == "" {
		badRequestResponse(w, r, errors.New("status is required"))
		return
	}

	tournament, err := h.tournamentService.UpdateStatus(r.Context(), actor, id, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReleaseRoomHandler godoc
// @Summary Выдать ID и пароль комнаты
// @Description Статус матча становится "ID Released", все подтвержденные игроки получают уведомление.
// @Tags tournaments
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /admin/tournaments/{tournamentID}/room [post]
func (h *TournamentHandler) ReleaseRoomHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	key, err := idempotencyKey(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		RoomID   string `json:"room_id"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.ReleaseRoom(r.Context(), actor, id, input.RoomID, input.Password, key)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReplaceSlotListHandler заменяет список слотов целиком (одна строка - один слот).
func (h *TournamentHandler) ReplaceSlotListHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	key, err := idempotencyKey(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Roster string `json:"roster"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.ReplaceSlotList(r.Context(), actor, id, input.Roster, key)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeclareResultsHandler godoc
// @Summary Объявить победителей
// @Description multipart/form-data: winners - JSON-массив {label, rank, prize}; points_table и result_banner - картинки.
// @Tags tournaments
// @Accept mpfd
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param winners formData string true "JSON array of winners"
// @Param points_table formData file false "Points table image"
// @Param result_banner formData file false "Result banner image"
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "Победители уже объявлены"
// @Security BearerAuth
// @Router /admin/tournaments/{tournamentID}/results [post]
func (h *TournamentHandler) DeclareResultsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	key, err := idempotencyKey(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := parseMultipart(r); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.DeclareResultsInput
	if r.MultipartForm != nil {
		if raw := r.FormValue("winners"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input.Winners); err != nil {
				badRequestResponse(w, r, fmt.Errorf("winners must be a JSON array: %w", err))
				return
			}
		}
	} else {
		var body struct {
			Winners []services.WinnerSelection `json:"winners"`
		}
		if err := readJSON(w, r, &body); err != nil {
			badRequestResponse(w, r, err)
			return
		}
		input.Winners = body.Winners
	}

	points, err := formFile(r, "points_table")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer points.Close()
	banner, err := formFile(r, "result_banner")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer banner.Close()

	input.PointsTable = points.Input()
	input.ResultBanner = banner.Input()

	tournament, winners, err := h.tournamentService.DeclareResults(r.Context(), actor, id, input, key)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"tournament": tournament, "winners": winners}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) UploadResultsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequestResponse(w, r, fmt.Errorf("failed to parse multipart form: %w", err))
		return
	}
	points, err := formFile(r, "points_table")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer points.Close()
	banner, err := formFile(r, "result_banner")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer banner.Close()

	tournament, err := h.tournamentService.UploadResultImages(r.Context(), actor, id, points.Input(), banner.Input())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CancelHandler godoc
// @Summary Отменить матч
// @Description Все подтвержденные заявки переходят в refund_pending с суммой взноса.
// @Tags tournaments
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/tournaments/{tournamentID}/cancel [post]
func (h *TournamentHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	key, err := idempotencyKey(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, refunds, err := h.tournamentService.Cancel(r.Context(), actor, id, key)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"tournament": tournament, "refunds": refunds}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
