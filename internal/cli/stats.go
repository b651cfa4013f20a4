package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storewatch/storewatch/internal/convstore"
)

var statsLimit int

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.Flags().IntVar(&statsLimit, "limit", 20, "Maximum conversations to list")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print adjudication statistics from the conversation store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := convstore.Open(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Statistics(context.Background())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List recent agent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := convstore.Open(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer store.Close()

		convs, err := store.Recent(context.Background(), statsLimit)
		if err != nil {
			return err
		}
		return printJSON(convs)
	},
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
