// Package rpcserver exposes the rollup's externally reachable JSON surface
// over HTTP, in the same controller/service/routes layering as the wallet
// server this sequencer was built alongside.
package rpcserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"l2rollup/core"
	"l2rollup/internal/rpcserver/controllers"
	"l2rollup/internal/rpcserver/routes"
	"l2rollup/internal/rpcserver/services"
)

// NewRouter builds the full HTTP router for the rollup's JSON surface: one
// plain JSON endpoint per method under /api/rollup, with no JSON-RPC
// request/response envelope.
func NewRouter(sequencer *core.Sequencer, settlement *core.Settlement) *mux.Router {
	svc := services.NewRollupService(sequencer, settlement)
	ctrl := controllers.NewRollupController(svc)
	r := mux.NewRouter()
	routes.Register(r, ctrl)
	return r
}

// ListenAndServe starts the HTTP server on addr, serving the rollup's JSON
// surface until the process exits or an unrecoverable error occurs.
func ListenAndServe(addr string, sequencer *core.Sequencer, settlement *core.Settlement) error {
	return http.ListenAndServe(addr, NewRouter(sequencer, settlement))
}
