package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/services"
)

type BookingHandler struct {
	bookingService services.BookingService
}

func NewBookingHandler(bs services.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bs}
}

// Submit godoc
// @Summary Забронировать слот
// @Description multipart/form-data (player_name, game_uid, whatsapp, screenshot) или JSON для бесплатных матчей.
// @Tags bookings
// @Accept mpfd
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param player_name formData string true "Имя игрока или команды"
// @Param game_uid formData string false "UID в игре"
// @Param whatsapp formData string true "WhatsApp"
// @Param screenshot formData file false "Скриншот оплаты (обязателен при fee > 0)"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "Имя занято / мест нет"
// @Failure 422 {object} map[string]string "Регистрация закрыта"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/bookings [post]
func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := parseMultipart(r); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitBookingInput
	if r.MultipartForm != nil {
		input = services.SubmitBookingInput{
			PlayerName: r.FormValue("player_name"),
			GameUID:    r.FormValue("game_uid"),
			Whatsapp:   r.FormValue("whatsapp"),
		}
	} else if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	screenshot, err := formFile(r, "screenshot")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer screenshot.Close()

	booking, err := h.bookingService.Submit(r.Context(), actor, tournamentID, input, screenshot.Input())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"booking": booking}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Approve godoc
// @Summary Подтвердить заявку
// @Description Занимает слот атомарно; при заполненном матче 409.
// @Tags bookings
// @Produce json
// @Param bookingID path int true "Booking ID"
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /admin/bookings/{bookingID}/approve [post]
func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor models.Actor, id int, key string) (*models.Booking, error) {
		return h.bookingService.Approve(r.Context(), actor, id, key)
	})
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor models.Actor, id int, key string) (*models.Booking, error) {
		return h.bookingService.Reject(r.Context(), actor, id, key)
	})
}

func (h *BookingHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Message string `json:"message"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	h.transition(w, r, func(actor models.Actor, id int, key string) (*models.Booking, error) {
		return h.bookingService.SendMessage(r.Context(), actor, id, input.Message, key)
	})
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Status models.BookingStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Status == "" {
		badRequestResponse(w, r, errors.New("status is required"))
		return
	}

	h.transition(w, r, func(actor models.Actor, id int, key string) (*models.Booking, error) {
		return h.bookingService.UpdateStatus(r.Context(), actor, id, input.Status, key)
	})
}

// UploadPayoutQR godoc
// @Summary Загрузить QR для выплаты
// @Tags bookings
// @Accept mpfd
// @Produce json
// @Param bookingID path int true "Booking ID"
// @Param qr formData file true "QR code image"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /bookings/{bookingID}/qr [post]
func (h *BookingHandler) UploadPayoutQR(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "bookingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	qr, err := formFile(r, "qr")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer qr.Close()

	booking, err := h.bookingService.UploadPayoutQR(r.Context(), actor, id, qr.Input())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"booking": booking}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MarkPaid godoc
// @Summary Отметить выплату
// @Tags bookings
// @Accept mpfd
// @Produce json
// @Param bookingID path int true "Booking ID"
// @Param proof formData file true "Payment proof image"
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]string "QR не загружен"
// @Security BearerAuth
// @Router /admin/bookings/{bookingID}/paid [post]
func (h *BookingHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	proof, err := formFile(r, "proof")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer proof.Close()

	h.transition(w, r, func(actor models.Actor, id int, key string) (*models.Booking, error) {
		return h.bookingService.MarkPaid(r.Context(), actor, id, proof.Input(), key)
	})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "bookingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	booking, err := h.bookingService.Get(r.Context(), actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"booking": booking}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMine - заявки текущего игрока вместе с матчами.
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	bookings, err := h.bookingService.ListForUser(r.Context(), actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"bookings": bookings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// List - админский список с фильтрами tournament_id и status.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var filter services.BookingListFilter
	query := r.URL.Query()
	if tid := query.Get("tournament_id"); tid != "" {
		id, err := strconv.Atoi(tid)
		if err != nil || id <= 0 {
			badRequestResponse(w, r, errors.New("invalid tournament_id query parameter"))
			return
		}
		filter.TournamentID = &id
	}
	if status := query.Get("status"); status != "" {
		s := models.BookingStatus(status)
		filter.Status = &s
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bookings, err := h.bookingService.List(r.Context(), actor, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"bookings": bookings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// transition - общий каркас для переходов заявки по {bookingID} с ключом идемпотентности.
func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, apply func(actor models.Actor, id int, key string) (*models.Booking, error)) {
	id, err := getIDFromURL(r, "bookingID")
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

	booking, err := apply(actor, id, key)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"booking": booking}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
