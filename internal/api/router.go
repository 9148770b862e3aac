package api

import (
	"net/http"
	"time"

	"github.com/inkeep/agents/internal/config"
	"github.com/inkeep/agents/internal/runstore"
)

// Router assembles the HTTP surface: management routes behind the
// auth → ref-resolution → session-manager chain, execution routes behind
// auth only, and unauthenticated ops endpoints.
type Router struct {
	mux     *http.ServeMux
	cfg     *config.Config
	session *SessionManager
	run     *runstore.Store
	version string
}

// NewRouter creates the router. session owns manage-store access; run is the
// execution-history store.
func NewRouter(cfg *config.Config, session *SessionManager, run *runstore.Store, version string) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		cfg:     cfg,
		session: session,
		run:     run,
		version: version,
	}
	r.setupRoutes()
	return r
}

// Handler returns the fully wrapped handler for the HTTP server.
func (r *Router) Handler() http.Handler {
	return ErrorHandler(r.mux)
}

func (r *Router) setupRoutes() {
	auth := Authenticate(r.cfg.Auth)
	ref := ResolveRef(r.cfg.ManageStore.DefaultBranch)

	// Management routes: every request gets its own branch-scoped session.
	manageMux := http.NewServeMux()

	manageMux.Handle("/tenants/{tenant_id}/projects", methods(map[string]http.HandlerFunc{
		http.MethodGet:  handleListProjects,
		http.MethodPost: handleCreateProject,
	}))
	manageMux.Handle("/tenants/{tenant_id}/projects/{project_id}", methods(map[string]http.HandlerFunc{
		http.MethodGet:    handleGetProject,
		http.MethodPut:    handleUpdateProject,
		http.MethodDelete: handleDeleteProject,
	}))

	manageMux.Handle("/tenants/{tenant_id}/projects/{project_id}/agents", methods(map[string]http.HandlerFunc{
		http.MethodGet:  handleListAgents,
		http.MethodPost: handleCreateAgent,
	}))
	manageMux.Handle("/tenants/{tenant_id}/projects/{project_id}/agents/{agent_id}", methods(map[string]http.HandlerFunc{
		http.MethodGet:    handleGetAgent,
		http.MethodPut:    handlePutAgent,
		http.MethodDelete: handleDeleteAgent,
	}))

	manageMux.Handle("/tenants/{tenant_id}/projects/{project_id}/triggers", methods(map[string]http.HandlerFunc{
		http.MethodGet:  handleListTriggers,
		http.MethodPost: handleCreateTrigger,
	}))
	manageMux.Handle("/tenants/{tenant_id}/projects/{project_id}/triggers/{trigger_id}", methods(map[string]http.HandlerFunc{
		http.MethodGet:    handleGetTrigger,
		http.MethodPut:    handlePutTrigger,
		http.MethodDelete: handleDeleteTrigger,
	}))

	manageMux.Handle("/tenants/{tenant_id}/projects/{project_id}/datasets", methods(map[string]http.HandlerFunc{
		http.MethodGet:  handleListDatasets,
		http.MethodPost: handleCreateDataset,
	}))
	manageMux.Handle("/tenants/{tenant_id}/projects/{project_id}/datasets/{dataset_id}", methods(map[string]http.HandlerFunc{
		http.MethodGet:    handleGetDataset,
		http.MethodPut:    handlePutDataset,
		http.MethodDelete: handleDeleteDataset,
	}))

	manageMux.Handle("/tenants/{tenant_id}/projects/{project_id}/evaluators", methods(map[string]http.HandlerFunc{
		http.MethodGet:  handleListEvaluators,
		http.MethodPost: handleCreateEvaluator,
	}))
	manageMux.Handle("/tenants/{tenant_id}/projects/{project_id}/evaluators/{evaluator_id}", methods(map[string]http.HandlerFunc{
		http.MethodGet:    handleGetEvaluator,
		http.MethodPut:    handlePutEvaluator,
		http.MethodDelete: handleDeleteEvaluator,
	}))

	r.mux.Handle("/tenants/", auth(ref(r.session.Middleware(manageMux))))

	// Execution history comes from the run store; no session needed. These
	// patterns are more specific than /tenants/ so they win route selection.
	execHandlers := NewExecutionHandlers(r.run)
	r.mux.Handle("/tenants/{tenant_id}/projects/{project_id}/executions", auth(methods(map[string]http.HandlerFunc{
		http.MethodGet:  execHandlers.HandleList,
		http.MethodPost: execHandlers.HandleRecord,
	})))
	r.mux.Handle("/tenants/{tenant_id}/projects/{project_id}/executions/{execution_id}", auth(methods(map[string]http.HandlerFunc{
		http.MethodGet: execHandlers.HandleGet,
	})))

	// Ops endpoints
	r.mux.HandleFunc("/health", r.handleHealth)
	r.mux.HandleFunc("/version", r.handleVersion)
	r.mux.HandleFunc("/openapi.json", handleOpenAPI(r.version))
	r.mux.Handle("/ws/logs", auth(http.HandlerFunc(handleLogStream)))
}

func methods(handlers map[string]http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"version": r.version,
	})
}
