package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickbite/orderflow/internal/auth"
	"github.com/quickbite/orderflow/internal/delivery"
)

type DeliveryService interface {
	Assign(ctx context.Context, actor auth.Actor, orderID, agentID string, reassign bool) (*delivery.Assignment, error)
	Respond(ctx context.Context, actor auth.Actor, assignmentID string, accept bool) (*delivery.Assignment, error)
	PostMilestone(ctx context.Context, actor auth.Actor, assignmentID string, milestone delivery.Status, note string) (*delivery.Assignment, error)
	ByOrder(ctx context.Context, actor auth.Actor, orderID string) (*delivery.Assignment, error)
	ListAgents(ctx context.Context, actor auth.Actor) ([]delivery.Agent, error)
}

type DeliveryHandler struct {
	dispatch DeliveryService
}

func NewDeliveryHandler(dispatch DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{dispatch: dispatch}
}

func (h *DeliveryHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		AgentID  string `json:"agentId"`
		Reassign bool   `json:"reassign"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.AgentID == "" {
		writeError(w, http.StatusBadRequest, "missing agentId")
		return
	}

	a, err := h.dispatch.Assign(r.Context(), actor, chi.URLParam(r, "orderID"), body.AgentID, body.Reassign)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *DeliveryHandler) Respond(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Accept *bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Accept == nil {
		writeError(w, http.StatusBadRequest, "missing accept")
		return
	}

	a, err := h.dispatch.Respond(r.Context(), actor, chi.URLParam(r, "assignmentID"), *body.Accept)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *DeliveryHandler) PostMilestone(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Milestone string `json:"milestone"`
		Note      string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Milestone == "" {
		writeError(w, http.StatusBadRequest, "missing milestone")
		return
	}

	a, err := h.dispatch.PostMilestone(r.Context(), actor, chi.URLParam(r, "assignmentID"),
		delivery.Status(body.Milestone), body.Note)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *DeliveryHandler) ByOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	a, err := h.dispatch.ByOrder(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *DeliveryHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	agents, err := h.dispatch.ListAgents(r.Context(), actor)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}
