// Package handlers is the HTTP surface of the grocery service.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"grocery/internal/auth"
	"grocery/internal/cache"
	"grocery/internal/models"
	"grocery/internal/order"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, userID int64, lines []order.Line) (*order.Placement, error)
}

type ItemLister interface {
	ListAvailable(ctx context.Context, search string, page models.Page) (*models.ItemPage, error)
}

type OrderReader interface {
	FindOrdersByUser(ctx context.Context, userID int64, page models.Page) (*models.OrderPage, error)
	FindOrderItems(ctx context.Context, userID, orderID int64, page models.Page) (*models.OrderItemPage, error)
}

type Authenticator interface {
	SignUp(ctx context.Context, username, password string, role models.Role) (*auth.Session, error)
	Login(ctx context.Context, username, password string) (*auth.Session, error)
}

type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, took time.Duration)
}

type Deps struct {
	Logger         *zap.Logger
	Observer       HTTPObserver
	MetricsHandler http.Handler
	Verifier       auth.Verifier
	Auth           Authenticator
	Placer         OrderPlacer
	Items          ItemLister
	Catalog        cache.Catalog
	Orders         OrderReader
	RequestTimeout time.Duration
}

type Handler struct {
	log     *zap.Logger
	auth    Authenticator
	placer  OrderPlacer
	items   ItemLister
	catalog cache.Catalog
	orders  OrderReader
}

// NewRouter builds the chi router with the observability, recovery and timeout middleware.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Catalog == nil {
		d.Catalog = cache.Nop{}
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 15 * time.Second
	}
	h := &Handler{
		log:     d.Logger,
		auth:    d.Auth,
		placer:  d.Placer,
		items:   d.Items,
		catalog: d.Catalog,
		orders:  d.Orders,
	}

	r := chi.NewRouter()
	r.Use(Observe(d.Logger, d.Observer))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.SignUp)
		r.Post("/login", h.Login)
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(auth.Authenticate(d.Verifier))
		r.Use(auth.RequireRole(models.RoleUser))

		r.Get("/grocery-items/available", h.AvailableItems)
		r.Post("/grocery-items/order", h.PlaceOrder)

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthorizeUserParam("userId"))
			r.Get("/orders/{userId}", h.UserOrders)
			r.Get("/orders/{userId}/items", h.OrderItems)
			r.Get("/orders/{userId}/items/{orderId}", h.OrderItems)
		})
	})

	return r
}
