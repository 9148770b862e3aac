package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/inkeep/agents/pkg/client"
)

// Definition is the on-disk YAML form of one project and everything in it.
// Server-assigned fields (timestamps, tenant and project backrefs) are not
// part of the file, so pulled definitions diff cleanly.
type Definition struct {
	Project    ProjectDef   `yaml:"project"`
	Agents     []AgentDef   `yaml:"agents,omitempty"`
	Triggers   []TriggerDef `yaml:"triggers,omitempty"`
	Datasets   []ConfigDef  `yaml:"datasets,omitempty"`
	Evaluators []EvalDef    `yaml:"evaluators,omitempty"`
}

type ProjectDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

type AgentDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Prompt      string `yaml:"prompt,omitempty"`
	Model       string `yaml:"model,omitempty"`
}

type TriggerDef struct {
	ID      string         `yaml:"id"`
	AgentID string         `yaml:"agentId"`
	Name    string         `yaml:"name"`
	Kind    string         `yaml:"kind"`
	Config  map[string]any `yaml:"config,omitempty"`
	Enabled bool           `yaml:"enabled"`
}

// ConfigDef covers datasets: a named resource with free-form config.
type ConfigDef struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Config      map[string]any `yaml:"config,omitempty"`
}

type EvalDef struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Criteria    string         `yaml:"criteria,omitempty"`
	Config      map[string]any `yaml:"config,omitempty"`
}

// DefinitionPath is where a project's definition lives under dir.
func DefinitionPath(dir, projectID string) string {
	return filepath.Join(dir, projectID+".yaml")
}

// LoadDefinition reads and validates a definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if def.Project.ID == "" {
		return nil, fmt.Errorf("%s: project.id is required", path)
	}
	if def.Project.Name == "" {
		return nil, fmt.Errorf("%s: project.name is required", path)
	}
	agents := map[string]bool{}
	for _, a := range def.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("%s: every agent needs an id", path)
		}
		if agents[a.ID] {
			return nil, fmt.Errorf("%s: duplicate agent id %q", path, a.ID)
		}
		agents[a.ID] = true
	}
	for _, t := range def.Triggers {
		if t.ID == "" || t.AgentID == "" {
			return nil, fmt.Errorf("%s: every trigger needs an id and agentId", path)
		}
		if !agents[t.AgentID] {
			return nil, fmt.Errorf("%s: trigger %q references unknown agent %q", path, t.ID, t.AgentID)
		}
	}
	return &def, nil
}

// SaveDefinition writes def to path.
func SaveDefinition(path string, def *Definition) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// configToJSON converts a YAML config map to the API's raw-JSON form.
func configToJSON(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// configFromJSON converts raw JSON from the API to a YAML-friendly map.
func configFromJSON(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

// fromRemote builds a Definition from what the API returned.
func fromRemote(p client.Project, agents []client.Agent, triggers []client.Trigger,
	datasets []client.Dataset, evaluators []client.Evaluator) *Definition {

	def := &Definition{
		Project: ProjectDef{ID: p.ID, Name: p.Name, Description: p.Description},
	}
	for _, a := range agents {
		def.Agents = append(def.Agents, AgentDef{
			ID: a.ID, Name: a.Name, Description: a.Description,
			Prompt: a.Prompt, Model: a.Model,
		})
	}
	for _, t := range triggers {
		def.Triggers = append(def.Triggers, TriggerDef{
			ID: t.ID, AgentID: t.AgentID, Name: t.Name, Kind: t.Kind,
			Config: configFromJSON(t.Config), Enabled: t.Enabled,
		})
	}
	for _, d := range datasets {
		def.Datasets = append(def.Datasets, ConfigDef{
			ID: d.ID, Name: d.Name, Description: d.Description,
			Config: configFromJSON(d.Config),
		})
	}
	for _, e := range evaluators {
		def.Evaluators = append(def.Evaluators, EvalDef{
			ID: e.ID, Name: e.Name, Description: e.Description,
			Criteria: e.Criteria, Config: configFromJSON(e.Config),
		})
	}
	return def
}
