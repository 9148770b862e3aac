package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/inkeep/agents/pkg/client"
)

var (
	pushProject string
	pushDir     string
	pushPrune   bool
	pushWatch   bool
)

// watchDebounce coalesces editor write bursts into one push.
const watchDebounce = 500 * time.Millisecond

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Apply a local YAML definition to the API",
	Long: `push reads <dir>/<project>.yaml and upserts the project and every agent,
trigger, dataset and evaluator in it. With --prune, remote resources absent
from the file are deleted. With --watch, the file is re-pushed on every change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pushProject == "" {
			return fmt.Errorf("--project is required")
		}

		c, err := apiClient()
		if err != nil {
			return err
		}

		path := DefinitionPath(pushDir, pushProject)
		if err := pushOnce(cmd.Context(), c, path); err != nil {
			return err
		}
		if !pushWatch {
			return nil
		}
		return watchAndPush(cmd.Context(), c, path)
	},
}

func init() {
	pushCmd.Flags().StringVar(&pushProject, "project", "", "project ID to push")
	pushCmd.Flags().StringVar(&pushDir, "dir", ".", "directory holding the definition file")
	pushCmd.Flags().BoolVar(&pushPrune, "prune", false, "delete remote resources not present in the file")
	pushCmd.Flags().BoolVar(&pushWatch, "watch", false, "keep running and re-push on file changes")
}

func pushOnce(ctx context.Context, c *client.Client, path string) error {
	def, err := LoadDefinition(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	project := client.Project{
		ID:          def.Project.ID,
		Name:        def.Project.Name,
		Description: def.Project.Description,
	}
	if _, err := c.GetProject(ctx, project.ID); client.IsNotFound(err) {
		if _, err := c.CreateProject(ctx, project); err != nil {
			return fmt.Errorf("creating project %s: %w", project.ID, err)
		}
	} else if err != nil {
		return fmt.Errorf("checking project %s: %w", project.ID, err)
	} else if _, err := c.UpdateProject(ctx, project); err != nil {
		return fmt.Errorf("updating project %s: %w", project.ID, err)
	}

	for _, a := range def.Agents {
		agent := client.Agent{
			ID: a.ID, Name: a.Name, Description: a.Description,
			Prompt: a.Prompt, Model: a.Model,
		}
		if _, err := c.PutAgent(ctx, project.ID, agent); err != nil {
			return fmt.Errorf("pushing agent %s: %w", a.ID, err)
		}
	}
	for _, t := range def.Triggers {
		cfg, err := configToJSON(t.Config)
		if err != nil {
			return fmt.Errorf("trigger %s config: %w", t.ID, err)
		}
		trigger := client.Trigger{
			ID: t.ID, AgentID: t.AgentID, Name: t.Name,
			Kind: t.Kind, Config: cfg, Enabled: t.Enabled,
		}
		if _, err := c.PutTrigger(ctx, project.ID, trigger); err != nil {
			return fmt.Errorf("pushing trigger %s: %w", t.ID, err)
		}
	}
	for _, d := range def.Datasets {
		cfg, err := configToJSON(d.Config)
		if err != nil {
			return fmt.Errorf("dataset %s config: %w", d.ID, err)
		}
		dataset := client.Dataset{
			ID: d.ID, Name: d.Name, Description: d.Description, Config: cfg,
		}
		if _, err := c.PutDataset(ctx, project.ID, dataset); err != nil {
			return fmt.Errorf("pushing dataset %s: %w", d.ID, err)
		}
	}
	for _, e := range def.Evaluators {
		cfg, err := configToJSON(e.Config)
		if err != nil {
			return fmt.Errorf("evaluator %s config: %w", e.ID, err)
		}
		evaluator := client.Evaluator{
			ID: e.ID, Name: e.Name, Description: e.Description,
			Criteria: e.Criteria, Config: cfg,
		}
		if _, err := c.PutEvaluator(ctx, project.ID, evaluator); err != nil {
			return fmt.Errorf("pushing evaluator %s: %w", e.ID, err)
		}
	}

	if pushPrune {
		if err := pruneRemote(ctx, c, def); err != nil {
			return err
		}
	}

	fmt.Printf("Pushed %s: %d agents, %d triggers, %d datasets, %d evaluators\n",
		def.Project.ID, len(def.Agents), len(def.Triggers), len(def.Datasets), len(def.Evaluators))
	return nil
}

// pruneRemote deletes remote resources the definition no longer contains.
// Triggers go first so agent deletion never races its trigger cascade.
func pruneRemote(ctx context.Context, c *client.Client, def *Definition) error {
	projectID := def.Project.ID

	keepTriggers := map[string]bool{}
	for _, t := range def.Triggers {
		keepTriggers[t.ID] = true
	}
	remoteTriggers, err := c.ListTriggers(ctx, projectID)
	if err != nil {
		return err
	}
	for _, t := range remoteTriggers {
		if !keepTriggers[t.ID] {
			if err := c.DeleteTrigger(ctx, projectID, t.ID); err != nil {
				return fmt.Errorf("pruning trigger %s: %w", t.ID, err)
			}
			fmt.Printf("Pruned trigger %s\n", t.ID)
		}
	}

	keepAgents := map[string]bool{}
	for _, a := range def.Agents {
		keepAgents[a.ID] = true
	}
	remoteAgents, err := c.ListAgents(ctx, projectID)
	if err != nil {
		return err
	}
	for _, a := range remoteAgents {
		if !keepAgents[a.ID] {
			if err := c.DeleteAgent(ctx, projectID, a.ID); err != nil {
				return fmt.Errorf("pruning agent %s: %w", a.ID, err)
			}
			fmt.Printf("Pruned agent %s\n", a.ID)
		}
	}

	keepDatasets := map[string]bool{}
	for _, d := range def.Datasets {
		keepDatasets[d.ID] = true
	}
	remoteDatasets, err := c.ListDatasets(ctx, projectID)
	if err != nil {
		return err
	}
	for _, d := range remoteDatasets {
		if !keepDatasets[d.ID] {
			if err := c.DeleteDataset(ctx, projectID, d.ID); err != nil {
				return fmt.Errorf("pruning dataset %s: %w", d.ID, err)
			}
			fmt.Printf("Pruned dataset %s\n", d.ID)
		}
	}

	keepEvaluators := map[string]bool{}
	for _, e := range def.Evaluators {
		keepEvaluators[e.ID] = true
	}
	remoteEvaluators, err := c.ListEvaluators(ctx, projectID)
	if err != nil {
		return err
	}
	for _, e := range remoteEvaluators {
		if !keepEvaluators[e.ID] {
			if err := c.DeleteEvaluator(ctx, projectID, e.ID); err != nil {
				return fmt.Errorf("pruning evaluator %s: %w", e.ID, err)
			}
			fmt.Printf("Pruned evaluator %s\n", e.ID)
		}
	}
	return nil
}

// watchAndPush re-pushes whenever the definition file changes. Watches the
// parent directory, since editors replace files rather than write in place.
func watchAndPush(ctx context.Context, c *client.Client, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s for changes (ctrl-c to stop)\n", path)

	target := filepath.Clean(path)
	var debounce *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			pending = debounce.C
		case <-pending:
			pending = nil
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(os.Stderr, "Definition unreadable, waiting for next change: %v\n", err)
				continue
			}
			if err := pushOnce(ctx, c, path); err != nil {
				fmt.Fprintf(os.Stderr, "Push failed: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
		}
	}
}
