package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/esports-booking/services"
)

type BlogHandler struct {
	blogService services.BlogService
}

func NewBlogHandler(bs services.BlogService) *BlogHandler {
	return &BlogHandler{blogService: bs}
}

func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	posts, err := h.blogService.List(r.Context(), limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"posts": posts}, nil)
}

func (h *BlogHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.blogService.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"post": post}, nil)
}

// Create godoc
// @Summary Опубликовать пост
// @Tags blog
// @Accept mpfd
// @Produce json
// @Param title formData string true "Заголовок"
// @Param content formData string true "Текст"
// @Param cover formData file false "Обложка"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/blogs [post]
func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := parseMultipart(r); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CreateBlogPostInput
	if r.MultipartForm != nil {
		input.Title = r.FormValue("title")
		input.Content = r.FormValue("content")
	} else if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	cover, err := formFile(r, "cover")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer cover.Close()

	post, err := h.blogService.Create(r.Context(), actor, input, cover.Input())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"post": post}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "postID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.blogService.Delete(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
