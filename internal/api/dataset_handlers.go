package api

import (
	"net/http"

	"github.com/inkeep/agents/internal/store"
)

func handleListDatasets(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	datasets, err := store.ListDatasets(r.Context(), q, r.PathValue("tenant_id"), r.PathValue("project_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if datasets == nil {
		datasets = []store.Dataset{}
	}
	writeJSONResponse(w, http.StatusOK, datasets)
}

func handleGetDataset(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	d, err := store.GetDataset(r.Context(), q,
		r.PathValue("tenant_id"), r.PathValue("project_id"), r.PathValue("dataset_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, d)
}

func handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var d store.Dataset
	if err := decodeJSONBody(r, &d); err != nil {
		writeStoreError(w, err)
		return
	}
	d.TenantID = r.PathValue("tenant_id")
	d.ProjectID = r.PathValue("project_id")
	if err := store.CreateDataset(r.Context(), q, &d); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, d)
}

func handlePutDataset(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var d store.Dataset
	if err := decodeJSONBody(r, &d); err != nil {
		writeStoreError(w, err)
		return
	}
	d.TenantID = r.PathValue("tenant_id")
	d.ProjectID = r.PathValue("project_id")
	d.ID = r.PathValue("dataset_id")
	if err := store.UpsertDataset(r.Context(), q, &d); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, d)
}

func handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	err := store.DeleteDataset(r.Context(), q,
		r.PathValue("tenant_id"), r.PathValue("project_id"), r.PathValue("dataset_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
