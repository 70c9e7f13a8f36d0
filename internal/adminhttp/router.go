// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adminhttp

import (
	"github.com/gorilla/mux"

	"github.com/groupsio/capharness/internal/api/middleware"
	"github.com/groupsio/capharness/internal/hostruntime"
)

// NewRouter builds the admin HTTP router: runtime operations plus the
// trace-event history/websocket endpoints, all under /api/v1.
func NewRouter(rt *hostruntime.Runtime) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	api := r.PathPrefix("/api/v1").Subrouter()

	rh := NewRuntimeHandler(rt)
	api.HandleFunc("/execute", rh.Execute).Methods("POST")
	api.HandleFunc("/state", rh.State).Methods("GET")
	api.HandleFunc("/capabilities", rh.ListCapabilities).Methods("GET")
	api.HandleFunc("/capabilities", rh.InstallCapability).Methods("POST")
	api.HandleFunc("/capabilities/{name}", rh.DescribeCapability).Methods("GET")
	api.HandleFunc("/capabilities/{name}", rh.UninstallCapability).Methods("DELETE")
	api.HandleFunc("/states", rh.ListStates).Methods("GET")
	api.HandleFunc("/states/{name}", rh.SaveState).Methods("POST")
	api.HandleFunc("/states/{name}/restore", rh.RestoreState).Methods("POST")
	api.HandleFunc("/reset", rh.Reset).Methods("POST")

	eh := NewEventHandler(rt.Events())
	api.HandleFunc("/events", eh.History).Methods("GET")
	api.HandleFunc("/events/ws", eh.WebSocket).Methods("GET")

	return r
}
