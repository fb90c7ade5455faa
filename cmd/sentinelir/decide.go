package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sentinelir/internal/decision"
	"sentinelir/pkg/models"
)

// actionTypeList is the output of the action-types command.
type actionTypeList struct {
	Autonomous       []string `json:"autonomous"`
	ApprovalRequired []string `json:"approval_required"`
}

var actionTypesCmd = &cobra.Command{
	Use:   "action-types",
	Short: "List the action types the decision engine recognizes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, actionTypes())
	},
}

func actionTypes() actionTypeList {
	return actionTypeList{
		Autonomous:       decision.AutonomousTypes(),
		ApprovalRequired: decision.ApprovalTypes(),
	}
}

var decideCmd = &cobra.Command{
	Use:   "decide <action.json>",
	Short: "Decide whether a proposed action may run autonomously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read action: %w", err)
		}
		var action models.SecurityAction
		if err := json.Unmarshal(data, &action); err != nil {
			return fmt.Errorf("decode action: %w", err)
		}
		if action.ID == "" {
			action.ID = uuid.NewString()
		}
		if action.Timestamp.IsZero() {
			action.Timestamp = time.Now()
		}
		action.Priority = models.ParseActionPriority(string(action.Priority))

		ctx := context.Background()
		a, err := buildApp(ctx, cfg, buildOptions{memory: true, audit: true})
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.svc.DecideAction(ctx, &action)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}
