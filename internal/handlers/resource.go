package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/fuel-delivery/internal/services"
	"go.mongodb.org/mongo-driver/bson"
)

// ResourceHandler exposes a services.Resource over HTTP.
type ResourceHandler[T any, PT services.Document[T]] struct {
	Resource *services.Resource[T, PT]
	Label    string

	// Scope limits what the caller can read and change. Nil sees everything.
	Scope func(services.Caller) bson.M
	// Prepare runs on a decoded create body, before validation.
	Prepare func(services.Caller, *T) error
}

func NewResourceHandler[T any, PT services.Document[T]](label string, r *services.Resource[T, PT]) *ResourceHandler[T, PT] {
	return &ResourceHandler[T, PT]{Resource: r, Label: label}
}

func (h *ResourceHandler[T, PT]) scope(c services.Caller) bson.M {
	if h.Scope == nil {
		return nil
	}
	return h.Scope(c)
}

func (h *ResourceHandler[T, PT]) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	doc := new(T)
	if err := decodeJSON(r, doc); err != nil {
		respondError(w, r, err)
		return
	}
	if h.Prepare != nil {
		if err := h.Prepare(caller, doc); err != nil {
			respondError(w, r, err)
			return
		}
	}
	created, err := h.Resource.Create(r.Context(), doc)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, h.Label+" created successfully", created)
}

func (h *ResourceHandler[T, PT]) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	doc, err := h.Resource.Get(r.Context(), chi.URLParam(r, "id"), h.scope(caller))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, h.Label+" retrieved successfully", doc)
}

func (h *ResourceHandler[T, PT]) List(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.Resource.List(r.Context(), h.scope(caller), r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, h.Label+"s retrieved successfully", page)
}

func (h *ResourceHandler[T, PT]) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	doc, err := h.Resource.Update(r.Context(), chi.URLParam(r, "id"), h.scope(caller), body)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, h.Label+" updated successfully", doc)
}

func (h *ResourceHandler[T, PT]) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	doc, err := h.Resource.Delete(r.Context(), chi.URLParam(r, "id"), h.scope(caller))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, h.Label+" deleted successfully", doc)
}
