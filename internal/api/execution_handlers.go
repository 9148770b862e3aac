package api

import (
	"net/http"
	"strconv"

	"github.com/inkeep/agents/internal/runstore"
)

// ExecutionHandlers serves invocation history from the run store. These
// routes bypass the session manager entirely: execution history is
// unversioned operational data.
type ExecutionHandlers struct {
	run *runstore.Store
}

// NewExecutionHandlers wires the run store.
func NewExecutionHandlers(run *runstore.Store) *ExecutionHandlers {
	return &ExecutionHandlers{run: run}
}

func (h *ExecutionHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := runstore.Filter{
		AgentID: r.URL.Query().Get("agentId"),
		Status:  r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer", nil)
			return
		}
		filter.Limit = n
	}

	executions, err := h.run.ListExecutions(r.Context(),
		r.PathValue("tenant_id"), r.PathValue("project_id"), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if executions == nil {
		executions = []runstore.Execution{}
	}
	writeJSONResponse(w, http.StatusOK, executions)
}

func (h *ExecutionHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.run.GetExecution(r.Context(),
		r.PathValue("tenant_id"), r.PathValue("project_id"), r.PathValue("execution_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, e)
}

func (h *ExecutionHandlers) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var e runstore.Execution
	if err := decodeJSONBody(r, &e); err != nil {
		writeStoreError(w, err)
		return
	}
	e.TenantID = r.PathValue("tenant_id")
	e.ProjectID = r.PathValue("project_id")
	if err := h.run.RecordExecution(r.Context(), &e); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, e)
}
