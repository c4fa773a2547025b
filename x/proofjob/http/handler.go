// Package http exposes the proof-job gateway: job submission, status
// polling and the service health probe.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	apicommon "github.com/sib-network/prover-service/server/api"
	"github.com/sib-network/prover-service/x/ezkl"
	"github.com/sib-network/prover-service/x/proofjob"
	"github.com/sib-network/prover-service/x/proofjob/queue"
	"github.com/sib-network/prover-service/x/proofjob/store"
)

// jobIDLen is the number of UUID characters kept for a job identifier.
const jobIDLen = 12

// HealthInfo describes the static part of the health report, resolved once
// at startup.
type HealthInfo struct {
	Version     string
	EzklVersion string
	EzklMode    string
	BrokerAddr  string
}

type Handler struct {
	queue  queue.Queue
	store  store.Store
	health HealthInfo
	log    zerolog.Logger
}

func NewHandler(q queue.Queue, st store.Store, health HealthInfo, log zerolog.Logger) *Handler {
	return &Handler{
		queue:  q,
		store:  st,
		health: health,
		log:    log.With().Str("component", "proofjob-http").Logger(),
	}
}

type submitReq struct {
	AgentID string    `json:"agent_id"`
	Returns []float64 `json:"returns"`
}

type submitResp struct {
	JobID   string `json:"job_id"`
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleSubmit validates the request, enqueues it for a worker and records
// the job as pending. Validation failures are rejected before a job id is
// allocated.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_json", "failed to decode request", nil)
		return
	}

	if err := proofjob.Validate(req.AgentID, req.Returns); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	jobID := uuid.NewString()[:jobIDLen]
	job := proofjob.Request{
		JobID:   jobID,
		AgentID: req.AgentID,
		Returns: req.Returns,
	}

	// The pending record lands before dispatch: once the job is on the
	// broker the executor is the only writer for this id, so the gateway
	// must never race a worker's progress or terminal writes. A missing
	// record reads as pending anyway.
	rec := &proofjob.Record{
		JobID:    jobID,
		State:    proofjob.StatePending,
		Progress: 0,
		Message:  "Job queued, waiting for worker...",
	}
	if err := h.store.Set(r.Context(), rec); err != nil {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to write pending record")
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("failed to enqueue proof job")
		if delErr := h.store.Delete(r.Context(), jobID); delErr != nil {
			h.log.Warn().Err(delErr).Str("job_id", jobID).Msg("failed to remove record for undispatched job")
		}
		apicommon.WriteError(
			w, r,
			http.StatusServiceUnavailable,
			"worker_unavailable",
			"failed to dispatch proof job to worker",
			err.Error(),
		)
		return
	}

	h.log.Info().
		Str("job_id", jobID).
		Str("agent_id", req.AgentID).
		Int("returns", len(req.Returns)).
		Msg("proof job dispatched")

	apicommon.WriteJSON(w, http.StatusOK, submitResp{
		JobID:   jobID,
		AgentID: req.AgentID,
		Status:  "pending",
		Message: "Proof job dispatched to worker",
	})
}

// handleStatus reports the current state of a job. Unknown job ids are
// indistinguishable from jobs still waiting in the queue.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]

	rec, ok, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("failed to read job record")
		apicommon.WriteError(w, r, http.StatusInternalServerError, "store_unavailable", "failed to read job status", nil)
		return
	}
	if !ok {
		rec = nil
	}

	apicommon.WriteJSON(w, http.StatusOK, proofjob.StatusOf(jobID, rec))
}

type healthResp struct {
	Status        string  `json:"status"`
	Service       string  `json:"service"`
	Version       string  `json:"version"`
	EzklAvailable bool    `json:"ezkl_available"`
	EzklVersion   *string `json:"ezkl_version"`
	EzklMode      string  `json:"ezkl_mode"`
	CeleryBroker  string  `json:"celery_broker"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResp{
		Status:       "healthy",
		Service:      "sib-prover",
		Version:      h.health.Version,
		EzklMode:     h.health.EzklMode,
		CeleryBroker: h.health.BrokerAddr,
	}
	if h.health.EzklVersion != "" {
		resp.EzklAvailable = true
		resp.EzklVersion = &h.health.EzklVersion
	}
	apicommon.WriteJSON(w, http.StatusOK, resp)
}

// EffectiveHealth builds the static health report from the resolved proving
// backend.
func EffectiveHealth(version, configuredMode, brokerAddr string, runner ezkl.Runner) HealthInfo {
	info := HealthInfo{
		Version:    version,
		BrokerAddr: brokerAddr,
	}
	if runner != nil {
		info.EzklVersion = runner.Version()
	}
	info.EzklMode = ezkl.EffectiveMode(configuredMode, runner != nil)
	return info
}
