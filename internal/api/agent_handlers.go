package api

import (
	"net/http"

	"github.com/inkeep/agents/internal/store"
)

func handleListAgents(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	agents, err := store.ListAgents(r.Context(), q, r.PathValue("tenant_id"), r.PathValue("project_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if agents == nil {
		agents = []store.Agent{}
	}
	writeJSONResponse(w, http.StatusOK, agents)
}

func handleGetAgent(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	a, err := store.GetAgent(r.Context(), q,
		r.PathValue("tenant_id"), r.PathValue("project_id"), r.PathValue("agent_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, a)
}

func handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var a store.Agent
	if err := decodeJSONBody(r, &a); err != nil {
		writeStoreError(w, err)
		return
	}
	a.TenantID = r.PathValue("tenant_id")
	a.ProjectID = r.PathValue("project_id")
	if err := store.CreateAgent(r.Context(), q, &a); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, a)
}

// PUT is an upsert so CLI pushes do not need to know whether the agent
// already exists on the target branch.
func handlePutAgent(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var a store.Agent
	if err := decodeJSONBody(r, &a); err != nil {
		writeStoreError(w, err)
		return
	}
	a.TenantID = r.PathValue("tenant_id")
	a.ProjectID = r.PathValue("project_id")
	a.ID = r.PathValue("agent_id")
	if err := store.UpsertAgent(r.Context(), q, &a); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, a)
}

func handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	err := store.DeleteAgent(r.Context(), q,
		r.PathValue("tenant_id"), r.PathValue("project_id"), r.PathValue("agent_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
