package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	inputredis "sentinelir/internal/input/redis"
	"sentinelir/pkg/models"
)

var analyzeCreate bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <event.json>",
	Short: "Score one security event and print the analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		ev, err := inputredis.DecodeEvent(data, time.Now())
		if err != nil {
			return err
		}

		ctx := context.Background()
		a, err := buildApp(ctx, cfg, buildOptions{memory: true})
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.stores.writer.PutEvent(ctx, ev); err != nil {
			return err
		}
		analysis, err := a.svc.AnalyzeEvent(ctx, ev.ID)
		if err != nil {
			return err
		}

		out := struct {
			Analysis *models.SecurityEventAnalysis `json:"analysis"`
			Incident *models.SecurityIncident      `json:"incident,omitempty"`
		}{Analysis: analysis}

		if analyzeCreate && analysis.ShouldCreateIncident {
			inc, err := a.svc.CreateIncidentFromAnalysis(ctx, ev.ID, analysis, "")
			if err != nil {
				return err
			}
			out.Incident = inc
		}
		return printJSON(cmd, out)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeCreate, "create", false, "also build the incident the analysis warrants")
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
