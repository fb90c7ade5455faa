package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sentinelir/internal/catalog"
	"sentinelir/pkg/models"
)

var (
	catalogPath       string
	catalogIndicators bool
	catalogPlaybook   string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate a threat-intel and playbook catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := catalogPath
		if path == "" {
			path = cfg.Sentinel.Catalog.Path
		}
		src, err := catalog.NewFileSource(path)
		if err != nil {
			return err
		}
		snap, err := catalog.Load(context.Background(), src, src.Playbooks())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		stats := snap.Stats()
		fmt.Fprintf(out, "catalog %s: indicators=%d playbooks=%d\n", path, stats.Indicators, stats.Playbooks)
		if catalogIndicators {
			writeIndicators(out, snap.Indicators())
		}
		if catalogPlaybook != "" {
			category, severity := parsePlaybookRef(catalogPlaybook)
			pb, err := src.Playbooks().FindByCategorySeverity(context.Background(), category, severity)
			if err != nil {
				return err
			}
			if pb == nil {
				return fmt.Errorf("no active playbook for %s/%s", category, severity)
			}
			writePlaybook(out, pb)
		}
		return nil
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogPath, "path", "", "catalog file (defaults to catalog.path)")
	catalogCmd.Flags().BoolVar(&catalogIndicators, "indicators", false, "list active indicators")
	catalogCmd.Flags().StringVar(&catalogPlaybook, "playbook", "", "show the playbook for <category>/<severity>")
}

// parsePlaybookRef splits "category/severity". A missing severity parses as info.
func parsePlaybookRef(ref string) (string, models.Severity) {
	category, severity, _ := strings.Cut(ref, "/")
	return strings.TrimSpace(category), models.ParseSeverity(severity)
}

func writeIndicators(w io.Writer, inds []models.ThreatIndicatorEntry) {
	for _, ind := range inds {
		fmt.Fprintf(w, "  %-10s %-32s %-20s %s\n", ind.Kind, ind.Value, ind.ThreatType, ind.Severity)
	}
}

func writePlaybook(w io.Writer, pb *models.Playbook) {
	fmt.Fprintf(w, "playbook %s\n", pb.Key())
	for i, step := range pb.Steps {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step)
	}
}
