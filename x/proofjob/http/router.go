package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMux binds gorilla/mux routes.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc(routeProve, h.handleSubmit).Methods(http.MethodPost).Name(routeNameProve)
	r.HandleFunc(routeProveStatus, h.handleStatus).Methods(http.MethodGet).Name(routeNameProveStatus)
	r.HandleFunc(routeHealth, h.handleHealth).Methods(http.MethodGet).Name(routeNameHealth)
}
