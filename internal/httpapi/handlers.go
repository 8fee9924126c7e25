// Package httpapi serves a read-only JSON window onto the local match view
// for debugging. Nothing here writes to the engine.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DoyleJ11/matchsync/internal/catalog"
	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/projection"
	"github.com/DoyleJ11/matchsync/internal/reconcile"
)

var errNoView = errors.New("no match view")

type ViewSource interface {
	Current(ctx context.Context) (reconcile.State, error)
}

type CatalogSource interface {
	Snapshot() catalog.Snapshot
}

type viewResponse struct {
	Version int                `json:"version"`
	View    *match.View        `json:"view"`
	Local   reconcile.Local    `json:"local"`
	Zones   []match.ZoneStatus `json:"zones"`
}

// current loads the engine state, answering the request itself on failure.
func current(w http.ResponseWriter, r *http.Request, views ViewSource) (reconcile.State, bool) {
	s, err := views.Current(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return s, false
	}
	if s.View == nil {
		http.Error(w, errNoView.Error(), http.StatusNotFound)
		return s, false
	}
	return s, true
}

func View(views ViewSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r, views)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, viewResponse{
			Version: s.Version,
			View:    s.View,
			Local:   s.Local,
			Zones:   s.View.ControlZones(),
		})
	}
}

func BoardView(views ViewSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r, views)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, projection.ProjectBoardView(*s.View, s.View.Membership.Role()))
	}
}

func CardView(views ViewSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r, views)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, projection.ProjectCardView(*s.View, s.View.Membership.Role()))
	}
}

func Catalog(cat CatalogSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cat.Snapshot())
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
