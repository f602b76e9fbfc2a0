package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"l2rollup/core"
	"l2rollup/internal/rpcserver/services"
)

// RollupController provides HTTP handlers for the rollup's externally
// reachable JSON surface: transaction submission and read-only state
// queries.
type RollupController struct {
	svc *services.RollupService
}

// NewRollupController returns a RollupController backed by svc.
func NewRollupController(svc *services.RollupService) *RollupController {
	return &RollupController{svc: svc}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// SendTransaction accepts a JSON-encoded transaction and admits it to the
// mempool.
func (rc *RollupController) SendTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	signature, err := rc.svc.SubmitTransaction(tx)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signature": signature})
}

// GetBalance returns the balance of the address named in the "address"
// query parameter.
func (rc *RollupController) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := core.ParseAddress(r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": rc.svc.GetBalance(addr)})
}

// GetTransaction returns the transaction named by the "signature" query
// parameter, if it is still within the recent-blocks cache.
func (rc *RollupController) GetTransaction(w http.ResponseWriter, r *http.Request) {
	signature := r.URL.Query().Get("signature")
	tx, ok := rc.svc.GetTransaction(signature)
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrTxNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// GetBlock returns the block named by the "block_num" query parameter.
func (rc *RollupController) GetBlock(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(r.URL.Query().Get("block_num"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	block, err := rc.svc.GetBlock(n)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// GetLatestBlockNum returns the highest block number produced so far.
func (rc *RollupController) GetLatestBlockNum(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"block_num": rc.svc.GetLatestBlockNum()})
}

// GetBatch returns the committed batch named by the "batch_index" query
// parameter.
func (rc *RollupController) GetBatch(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.ParseUint(r.URL.Query().Get("batch_index"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	batch, ok := rc.svc.GetCommittedBatch(idx)
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrBatchNotFound)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// GetLatestBatch returns the most recently committed batch.
func (rc *RollupController) GetLatestBatch(w http.ResponseWriter, r *http.Request) {
	batch := rc.svc.GetLatestBatch()
	if batch == nil {
		writeError(w, http.StatusNotFound, core.ErrBatchNotFound)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// GetLastFinalizedBatchIndex returns the highest finalized batch index.
func (rc *RollupController) GetLastFinalizedBatchIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"batch_index": rc.svc.GetLastFinalizedBatchIndex()})
}
