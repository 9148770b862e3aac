package api

import (
	"net/http"

	"github.com/inkeep/agents/internal/dolt"
	"github.com/inkeep/agents/internal/store"
)

// requestDB fetches the handle the session manager bound for this request.
// A missing handle means the route was wired outside the session middleware,
// which is a programming error.
func requestDB(w http.ResponseWriter, r *http.Request) (dolt.Querier, bool) {
	q := DBFromContext(r.Context())
	if q == nil {
		writeErrorResponse(w, http.StatusInternalServerError, "no_db_handle",
			"No database handle bound for this request", nil)
		return nil, false
	}
	return q, true
}

func handleListProjects(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	projects, err := store.ListProjects(r.Context(), q, r.PathValue("tenant_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	writeJSONResponse(w, http.StatusOK, projects)
}

func handleGetProject(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	p, err := store.GetProject(r.Context(), q, r.PathValue("tenant_id"), r.PathValue("project_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, p)
}

func handleCreateProject(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var p store.Project
	if err := decodeJSONBody(r, &p); err != nil {
		writeStoreError(w, err)
		return
	}
	p.TenantID = r.PathValue("tenant_id")
	if err := store.CreateProject(r.Context(), q, &p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, p)
}

func handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	var p store.Project
	if err := decodeJSONBody(r, &p); err != nil {
		writeStoreError(w, err)
		return
	}
	p.TenantID = r.PathValue("tenant_id")
	p.ID = r.PathValue("project_id")
	if err := store.UpdateProject(r.Context(), q, &p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, p)
}

func handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	q, ok := requestDB(w, r)
	if !ok {
		return
	}
	if err := store.DeleteProject(r.Context(), q, r.PathValue("tenant_id"), r.PathValue("project_id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
