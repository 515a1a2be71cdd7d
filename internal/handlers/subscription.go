package handlers

import (
	"net/http"

	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/services"
	"go.mongodb.org/mongo-driver/bson"
)

// SubscriptionHandler serves /subscriptions. Reads and deletes are the
// generic resource handlers scoped to the subscriber.
type SubscriptionHandler struct {
	*ResourceHandler[models.Subscription, *models.Subscription]
	subs *services.SubscriptionService
}

func NewSubscriptionHandler(subs *services.SubscriptionService) *SubscriptionHandler {
	rh := NewResourceHandler("Subscription", subs.Resource)
	rh.Scope = func(c services.Caller) bson.M { return c.Scope("user") }
	return &SubscriptionHandler{ResourceHandler: rh, subs: subs}
}

// Create subscribes the caller to the package in the body.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req models.CreateSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sub, err := h.subs.Subscribe(r.Context(), caller, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Subscription created successfully", sub)
}
