package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quickbite/orderflow/internal/auth"
)

type Handlers struct {
	Cart     *CartHandler
	Orders   *OrderHandler
	Delivery *DeliveryHandler
	Payments *PaymentHandler
}

func NewRouter(h Handlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Gateway callbacks authenticate with a shared secret, not a bearer token.
	r.Post("/callbacks/payments", h.Payments.Callback)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))

		r.Route("/carts/{restaurantID}", func(r chi.Router) {
			r.Get("/", h.Cart.Get)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{itemID}", h.Cart.SetItemQuantity)
			r.Delete("/", h.Cart.Clear)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.Place)
			r.Get("/", h.Orders.List)
			r.Get("/{orderID}", h.Orders.Get)
			r.Get("/{orderID}/history", h.Orders.History)
			r.Post("/{orderID}/status", h.Orders.Advance)
			r.Post("/{orderID}/cancel", h.Orders.Cancel)

			r.Post("/{orderID}/delivery", h.Delivery.Assign)
			r.Get("/{orderID}/delivery", h.Delivery.ByOrder)

			r.Post("/{orderID}/payments", h.Payments.Initiate)
			r.Get("/{orderID}/payments", h.Payments.StatusByOrder)
		})

		r.Route("/deliveries/{assignmentID}", func(r chi.Router) {
			r.Post("/response", h.Delivery.Respond)
			r.Post("/milestones", h.Delivery.PostMilestone)
		})

		r.Get("/agents", h.Delivery.ListAgents)

		r.Post("/payments/{paymentID}/reconcile", h.Payments.Reconcile)
	})

	return r
}
