package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	pullProject string
	pullDir     string
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch a project's definition from the API into a local YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pullProject == "" {
			return fmt.Errorf("--project is required")
		}

		c, err := apiClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		project, err := c.GetProject(ctx, pullProject)
		if err != nil {
			return fmt.Errorf("fetching project %s: %w", pullProject, err)
		}
		agents, err := c.ListAgents(ctx, pullProject)
		if err != nil {
			return fmt.Errorf("fetching agents: %w", err)
		}
		triggers, err := c.ListTriggers(ctx, pullProject)
		if err != nil {
			return fmt.Errorf("fetching triggers: %w", err)
		}
		datasets, err := c.ListDatasets(ctx, pullProject)
		if err != nil {
			return fmt.Errorf("fetching datasets: %w", err)
		}
		evaluators, err := c.ListEvaluators(ctx, pullProject)
		if err != nil {
			return fmt.Errorf("fetching evaluators: %w", err)
		}

		def := fromRemote(project, agents, triggers, datasets, evaluators)
		path := DefinitionPath(pullDir, pullProject)
		if err := SaveDefinition(path, def); err != nil {
			return err
		}

		fmt.Printf("Pulled %s: %d agents, %d triggers, %d datasets, %d evaluators -> %s\n",
			pullProject, len(def.Agents), len(def.Triggers), len(def.Datasets), len(def.Evaluators), path)
		return nil
	},
}

func init() {
	pullCmd.Flags().StringVar(&pullProject, "project", "", "project ID to pull")
	pullCmd.Flags().StringVar(&pullDir, "dir", ".", "directory to write the definition into")
}
