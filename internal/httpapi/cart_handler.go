package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickbite/orderflow/internal/auth"
	"github.com/quickbite/orderflow/internal/cart"
	"github.com/quickbite/orderflow/internal/catalog"
)

type CartHandler struct {
	carts   cart.Repository
	catalog catalog.Gateway
}

func NewCartHandler(carts cart.Repository, gw catalog.Gateway) *CartHandler {
	return &CartHandler{carts: carts, catalog: gw}
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, restaurantID, ok := h.cartScope(w, r)
	if !ok {
		return
	}

	c, err := h.carts.Get(r.Context(), actor.ID, restaurantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "cart not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, restaurantID, ok := h.cartScope(w, r)
	if !ok {
		return
	}

	var body struct {
		MenuItemID string `json:"menuItemId"`
		Quantity   int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.MenuItemID == "" || body.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "menuItemId and positive quantity required")
		return
	}

	// The item must exist and belong to this restaurant; price stays in the
	// catalog until placement snapshots it.
	mi, err := h.catalog.MenuItem(r.Context(), body.MenuItemID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "menu item does not exist")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	if mi.RestaurantID != restaurantID {
		writeError(w, http.StatusBadRequest, "menu item belongs to a different restaurant")
		return
	}

	c, err := h.carts.AddItem(r.Context(), actor.ID, restaurantID, cart.Item{
		MenuItemID: body.MenuItemID,
		Quantity:   body.Quantity,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) SetItemQuantity(w http.ResponseWriter, r *http.Request) {
	actor, restaurantID, ok := h.cartScope(w, r)
	if !ok {
		return
	}
	menuItemID := chi.URLParam(r, "itemID")

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity may not be negative")
		return
	}

	c, err := h.carts.SetItemQuantity(r.Context(), actor.ID, restaurantID, menuItemID, body.Quantity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update cart")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "cart not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	actor, restaurantID, ok := h.cartScope(w, r)
	if !ok {
		return
	}

	if err := h.carts.Clear(r.Context(), actor.ID, restaurantID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *CartHandler) cartScope(w http.ResponseWriter, r *http.Request) (auth.Actor, string, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return auth.Actor{}, "", false
	}
	if err := auth.Allow(actor, auth.OpManageCart); err != nil {
		writeFault(w, err)
		return auth.Actor{}, "", false
	}

	restaurantID := chi.URLParam(r, "restaurantID")
	if restaurantID == "" {
		writeError(w, http.StatusBadRequest, "missing restaurantID")
		return auth.Actor{}, "", false
	}
	return actor, restaurantID, true
}
