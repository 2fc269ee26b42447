package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"paygate/internal/gate"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler, g *gate.Gate) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/settlements/{txHash}", handler.GetSettlement)

	// Everything below the gate costs money.
	r.Group(func(r chi.Router) {
		r.Use(g.Middleware)
		r.Get("/resource", handler.GetResource)
	})

	return &Server{Router: r}
}
