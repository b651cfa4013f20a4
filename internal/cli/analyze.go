package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storewatch/storewatch/internal/agents"
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <payload.json>",
	Short: "Adjudicate a single incident payload",
	Long:  "Reads one incident payload file, runs the two-agent consensus protocol, and prints the conclusion as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	var in agents.IncidentInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	out, err := rt.coordinator.AnalyzeIncident(context.Background(), in)
	if err != nil {
		return err
	}

	if err := rt.publisher.PublishConclusion(context.Background(), out.Conclusion); err != nil {
		rt.logger.Error().Err(err).Msg("publish conclusion failed")
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
