package api

import (
	"net/http"
	"sync"
)

var openAPIOnce sync.Once
var openAPIDoc map[string]any

// handleOpenAPI serves a statically assembled OpenAPI description of the
// management routes. The document is built once; it only depends on the
// route table, which is fixed at startup.
func handleOpenAPI(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		openAPIOnce.Do(func() { openAPIDoc = buildOpenAPIDoc(version) })
		writeJSONResponse(w, http.StatusOK, openAPIDoc)
	}
}

func buildOpenAPIDoc(version string) map[string]any {
	paths := map[string]any{}

	collection := func(tag string) map[string]any {
		return map[string]any{
			"get":  map[string]any{"tags": []string{tag}, "summary": "List " + tag, "responses": okResponse()},
			"post": map[string]any{"tags": []string{tag}, "summary": "Create a " + singular(tag), "responses": createdResponse()},
		}
	}
	item := func(tag string) map[string]any {
		return map[string]any{
			"get":    map[string]any{"tags": []string{tag}, "summary": "Get a " + singular(tag), "responses": okResponse()},
			"put":    map[string]any{"tags": []string{tag}, "summary": "Create or update a " + singular(tag), "responses": okResponse()},
			"delete": map[string]any{"tags": []string{tag}, "summary": "Delete a " + singular(tag), "responses": noContentResponse()},
		}
	}

	paths["/tenants/{tenant_id}/projects"] = map[string]any{
		"get":  map[string]any{"tags": []string{"projects"}, "summary": "List projects", "responses": okResponse()},
		"post": map[string]any{"tags": []string{"projects"}, "summary": "Create a project", "responses": createdResponse()},
	}
	paths["/tenants/{tenant_id}/projects/{project_id}"] = map[string]any{
		"get":    map[string]any{"tags": []string{"projects"}, "summary": "Get a project", "responses": okResponse()},
		"put":    map[string]any{"tags": []string{"projects"}, "summary": "Update a project", "responses": okResponse()},
		"delete": map[string]any{"tags": []string{"projects"}, "summary": "Delete a project", "responses": noContentResponse()},
	}

	base := "/tenants/{tenant_id}/projects/{project_id}/"
	for _, res := range []struct{ name, idParam string }{
		{"agents", "{agent_id}"},
		{"triggers", "{trigger_id}"},
		{"datasets", "{dataset_id}"},
		{"evaluators", "{evaluator_id}"},
	} {
		paths[base+res.name] = collection(res.name)
		paths[base+res.name+"/"+res.idParam] = item(res.name)
	}

	paths[base+"executions"] = map[string]any{
		"get":  map[string]any{"tags": []string{"executions"}, "summary": "List executions", "responses": okResponse()},
		"post": map[string]any{"tags": []string{"executions"}, "summary": "Record an execution", "responses": createdResponse()},
	}
	paths[base+"executions/{execution_id}"] = map[string]any{
		"get": map[string]any{"tags": []string{"executions"}, "summary": "Get an execution", "responses": okResponse()},
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "Inkeep Agents API",
			"version": version,
		},
		"paths": paths,
	}
}

func singular(tag string) string {
	if len(tag) > 0 && tag[len(tag)-1] == 's' {
		return tag[:len(tag)-1]
	}
	return tag
}

func okResponse() map[string]any {
	return map[string]any{"200": map[string]any{"description": "OK"}}
}

func createdResponse() map[string]any {
	return map[string]any{"201": map[string]any{"description": "Created"}}
}

func noContentResponse() map[string]any {
	return map[string]any{"204": map[string]any{"description": "No Content"}}
}
