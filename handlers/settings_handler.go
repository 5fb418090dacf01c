package handlers

import (
	"net/http"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/services"
)

type SettingsHandler struct {
	settingsService services.SettingsService
}

func NewSettingsHandler(ss services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: ss}
}

type tickerMessageInput struct {
	Message string `json:"message"`
}

func (h *SettingsHandler) GetTicker(w http.ResponseWriter, r *http.Request) {
	ticker, err := h.settingsService.GetTicker(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"ticker": ticker}, nil)
}

func (h *SettingsHandler) AddTickerMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var input tickerMessageInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ticker, err := h.settingsService.AddTickerMessage(r.Context(), actor, input.Message)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"ticker": ticker}, nil)
}

func (h *SettingsHandler) RemoveTickerMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var input tickerMessageInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ticker, err := h.settingsService.RemoveTickerMessage(r.Context(), actor, input.Message)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"ticker": ticker}, nil)
}

func (h *SettingsHandler) GetFooterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.settingsService.GetFooterStats(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil)
}

func (h *SettingsHandler) UpdateFooterStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var input models.FooterStats
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stats, err := h.settingsService.UpdateFooterStats(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil)
}
