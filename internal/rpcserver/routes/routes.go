package routes

import (
	"github.com/gorilla/mux"

	"l2rollup/internal/rpcserver/controllers"
	"l2rollup/internal/rpcserver/middleware"
)

// Register wires rc's handlers onto r under the /api/rollup prefix.
func Register(r *mux.Router, rc *controllers.RollupController) {
	r.Use(middleware.Logger)
	r.HandleFunc("/api/rollup/sendTransaction", rc.SendTransaction).Methods("POST")
	r.HandleFunc("/api/rollup/getBalance", rc.GetBalance).Methods("GET")
	r.HandleFunc("/api/rollup/getTransaction", rc.GetTransaction).Methods("GET")
	r.HandleFunc("/api/rollup/getBlock", rc.GetBlock).Methods("GET")
	r.HandleFunc("/api/rollup/getLatestBlockNum", rc.GetLatestBlockNum).Methods("GET")
	r.HandleFunc("/api/rollup/getBatch", rc.GetBatch).Methods("GET")
	r.HandleFunc("/api/rollup/getLatestBatch", rc.GetLatestBatch).Methods("GET")
	r.HandleFunc("/api/rollup/getLastFinalizedBatchIndex", rc.GetLastFinalizedBatchIndex).Methods("GET")
}
