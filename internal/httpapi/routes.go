package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(views ViewSource, cat CatalogSource) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/view", View(views))
	r.Get("/view/board", BoardView(views))
	r.Get("/view/card", CardView(views))
	r.Get("/catalog", Catalog(cat))
	return r
}
