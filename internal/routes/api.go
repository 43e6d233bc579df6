package routes

import (
	"github.com/spoolworks/atelier/internal/handler"
	"github.com/spoolworks/atelier/internal/middleware"
	"github.com/spoolworks/atelier/internal/router"
)

// RegisterAPI wires the cart endpoints. All cart routes require a
// resolved user identity; metrics is served unauthenticated.
func RegisterAPI(r *router.Router, carts *handler.CartHandler, metrics *middleware.Metrics) {
	auth := router.Middleware(middleware.WithUserID)

	r.Get("/api/cart", carts.GetCart, auth)
	r.Get("/api/cart/summary", carts.GetSummary, auth)
	r.Post("/api/cart/items", carts.AddItem, auth)
	r.Patch("/api/cart/items/{id}", carts.UpdateItem, auth)
	r.Delete("/api/cart/items/{id}", carts.RemoveItem, auth)
	r.Delete("/api/cart", carts.Clear, auth)
	r.Post("/api/cart/sync", carts.Sync, auth)

	r.Handle("/metrics", metrics.Handler())
}
