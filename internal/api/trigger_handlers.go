package api

import (
	"net/http"

	"github.com/inkeep/agents/internal/store"
)

func handleListTriggers(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	triggers, err := store.ListTriggers(r.Context(), q, r.PathValue("tenant_id"), r.PathValue("project_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if triggers == nil {
		triggers = []store.Trigger{}
	}
	writeJSONResponse(w, http.StatusOK, triggers)
}

func handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	t, err := store.GetTrigger(r.Context(), q,
		r.PathValue("tenant_id"), r.PathValue("project_id"), r.PathValue("trigger_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, t)
}

func handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var t store.Trigger
	if err := decodeJSONBody(r, &t); err != nil {
		writeStoreError(w, err)
		return
	}
	t.TenantID = r.PathValue("tenant_id")
	t.ProjectID = r.PathValue("project_id")
	if err := store.CreateTrigger(r.Context(), q, &t); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, t)
}

func handlePutTrigger(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var t store.Trigger
	if err := decodeJSONBody(r, &t); err != nil {
		writeStoreError(w, err)
		return
	}
	t.TenantID = r.PathValue("tenant_id")
	t.ProjectID = r.PathValue("project_id")
	t.ID = r.PathValue("trigger_id")
	if err := store.UpsertTrigger(r.Context(), q, &t); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, t)
}

func handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	err := store.DeleteTrigger(r.Context(), q,
		r.PathValue("tenant_id"), r.PathValue("project_id"), r.PathValue("trigger_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
