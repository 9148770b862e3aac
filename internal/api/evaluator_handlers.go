package api

import (
	"net/http"

	"github.com/inkeep/agents/internal/store"
)

func handleListEvaluators(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	evaluators, err := store.ListEvaluators(r.Context(), q, r.PathValue("tenant_id"), r.PathValue("project_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if evaluators == nil {
		evaluators = []store.Evaluator{}
	}
	writeJSONResponse(w, http.StatusOK, evaluators)
}

func handleGetEvaluator(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	e, err := store.GetEvaluator(r.Context(), q,
		r.PathValue("tenant_id"), r.PathValue("project_id"), r.PathValue("evaluator_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, e)
}

func handleCreateEvaluator(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var e store.Evaluator
	if err := decodeJSONBody(r, &e); err != nil {
		writeStoreError(w, err)
		return
	}
	e.TenantID = r.PathValue("tenant_id")
	e.ProjectID = r.PathValue("project_id")
	if err := store.CreateEvaluator(r.Context(), q, &e); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, e)
}

func handlePutEvaluator(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var e store.Evaluator
	if err := decodeJSONBody(r, &e); err != nil {
		writeStoreError(w, err)
		return
	}
	e.TenantID = r.PathValue("tenant_id")
	e.ProjectID = r.PathValue("project_id")
	e.ID = r.PathValue("evaluator_id")
	if err := store.UpsertEvaluator(r.Context(), q, &e); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, e)
}

func handleDeleteEvaluator(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	err := store.DeleteEvaluator(r.Context(), q,
		r.PathValue("tenant_id"), r.PathValue("project_id"), r.PathValue("evaluator_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
