package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "p1.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefinition(t *testing.T) {
	path := writeDefinition(t, `
project:
  id: p1
  name: Support Bot
agents:
  - id: a1
    name: Router
    prompt: Route tickets to the right queue.
    model: gpt-4o
triggers:
  - id: tr1
    agentId: a1
    name: Nightly
    kind: cron
    config:
      schedule: "0 2 * * *"
    enabled: true
datasets:
  - id: d1
    name: Golden tickets
evaluators:
  - id: e1
    name: Accuracy
    criteria: Answer matches the golden response.
`)

	def, err := LoadDefinition(path)
	require.NoError(t, err)

	assert.Equal(t, "p1", def.Project.ID)
	require.Len(t, def.Agents, 1)
	assert.Equal(t, "gpt-4o", def.Agents[0].Model)
	require.Len(t, def.Triggers, 1)
	assert.Equal(t, "0 2 * * *", def.Triggers[0].Config["schedule"])
	assert.True(t, def.Triggers[0].Enabled)
	require.Len(t, def.Datasets, 1)
	require.Len(t, def.Evaluators, 1)
}

func TestLoadDefinitionValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing project id",
			"project:\n  name: P\n",
			"project.id is required",
		},
		{
			"missing project name",
			"project:\n  id: p1\n",
			"project.name is required",
		},
		{
			"agent without id",
			"project:\n  id: p1\n  name: P\nagents:\n  - name: A\n",
			"every agent needs an id",
		},
		{
			"duplicate agent id",
			"project:\n  id: p1\n  name: P\nagents:\n  - id: a1\n    name: A\n  - id: a1\n    name: B\n",
			"duplicate agent id",
		},
		{
			"trigger references unknown agent",
			"project:\n  id: p1\n  name: P\ntriggers:\n  - id: tr1\n    agentId: ghost\n    name: T\n    kind: cron\n",
			"unknown agent",
		},
		{
			"unknown field rejected",
			"project:\n  id: p1\n  name: P\n  bogus: true\n",
			"parsing",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadDefinition(writeDefinition(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	def := &Definition{
		Project: ProjectDef{ID: "p1", Name: "Support Bot", Description: "d"},
		Agents: []AgentDef{
			{ID: "a1", Name: "Router", Prompt: "Route.", Model: "gpt-4o"},
		},
		Triggers: []TriggerDef{
			{ID: "tr1", AgentID: "a1", Name: "Hook", Kind: "webhook",
				Config: map[string]any{"path": "/hooks/in"}, Enabled: true},
		},
	}

	path := filepath.Join(t.TempDir(), "out", "p1.yaml")
	require.NoError(t, SaveDefinition(path, def))

	loaded, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, def.Project, loaded.Project)
	assert.Equal(t, def.Agents, loaded.Agents)
	assert.Equal(t, def.Triggers, loaded.Triggers)
}

func TestDefinitionPath(t *testing.T) {
	assert.Equal(t, filepath.Join("defs", "p1.yaml"), DefinitionPath("defs", "p1"))
}
