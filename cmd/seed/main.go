// Command seed creates a few sample workflows in an n8n instance, skipping
// any whose name already exists.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"n8n-mcp/internal/config"
	"n8n-mcp/internal/logging"
	"n8n-mcp/internal/services"
	"n8n-mcp/pkg/models"
)

type seedWorkflow struct {
	Name     string
	Schedule string
}

var seedWorkflows = []seedWorkflow{
	{"Daily Report", "0 8 * * *"},
	{"Hourly Sync", "0 * * * *"},
	{"Weekly Cleanup", "0 3 * * 0"},
}

func main() {
	var useEnv bool
	cmd := &cobra.Command{
		Use:          "seed [config_path]",
		Short:        "Create sample workflows in n8n",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.Options{UseEnv: useEnv}
			if len(args) == 1 {
				opts.Path = args[0]
			}
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&useEnv, "env", false, "read configuration from environment variables")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts config.Options) error {
	cfg, err := config.LoadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.NewLogger(logging.Options{Level: cfg.Logging.Level})
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	client := services.NewClient(cfg.N8n.BaseURL, cfg.N8n.APIKey,
		services.WithLogger(logger),
		services.WithTimeout(cfg.RequestTimeout()),
		services.WithMaxRetries(cfg.N8n.MaxRetries),
		services.WithRetryBaseDelay(cfg.RetryBaseDelay()),
	)
	defer client.Close()
	svc := services.NewWorkflowService(client)

	existing, err := svc.ListWorkflows(ctx, services.ListOptions{Limit: 100})
	if err != nil {
		return fmt.Errorf("failed to list existing workflows: %w", err)
	}
	existingNames := make(map[string]bool, len(existing))
	for _, wf := range existing {
		existingNames[wf.Name] = true
	}

	for _, sw := range seedWorkflows {
		if existingNames[sw.Name] {
			logger.Info("Skipping existing workflow", "name", sw.Name)
			continue
		}

		wf, err := buildWorkflow(sw)
		if err != nil {
			return err
		}
		created, err := svc.CreateWorkflow(ctx, wf)
		if err != nil {
			logger.Error("Failed to create workflow", "name", sw.Name, "error", err)
			continue
		}
		logger.Info("Seeded workflow", "name", created.Name, "id", created.ID)
	}
	logger.Info("Seeding complete!")
	return nil
}

// buildWorkflow creates a schedule-triggered workflow with a single no-op step.
func buildWorkflow(sw seedWorkflow) (*models.Workflow, error) {
	nodes := []map[string]any{
		{
			"id":          uuid.NewString(),
			"name":        "Schedule Trigger",
			"type":        "n8n-nodes-base.scheduleTrigger",
			"typeVersion": 1.2,
			"position":    []int{0, 0},
			"parameters": map[string]any{
				"rule": map[string]any{
					"interval": []any{map[string]any{"field": "cronExpression", "expression": sw.Schedule}},
				},
			},
		},
		{
			"id":          uuid.NewString(),
			"name":        "No Operation",
			"type":        "n8n-nodes-base.noOp",
			"typeVersion": 1,
			"position":    []int{220, 0},
			"parameters":  map[string]any{},
		},
	}
	connections := map[string]any{
		"Schedule Trigger": map[string]any{
			"main": []any{[]any{map[string]any{"node": "No Operation", "type": "main", "index": 0}}},
		},
	}
	settings := map[string]any{"executionOrder": "v1", "timezone": time.UTC.String()}

	wf := &models.Workflow{Name: sw.Name}
	var err error
	if wf.Nodes, err = json.Marshal(nodes); err != nil {
		return nil, err
	}
	if wf.Connections, err = json.Marshal(connections); err != nil {
		return nil, err
	}
	if wf.Settings, err = json.Marshal(settings); err != nil {
		return nil, err
	}
	return wf, nil
}
