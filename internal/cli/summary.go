package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mnemo/pkg/memory"
)

var (
	summaryTopics    []string
	summaryDecisions []string
	summaryNextSteps []string
	summaryKeyFiles  []string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Manage session summaries",
}

var summaryCreateCmd = &cobra.Command{
	Use:   "create <session-id>",
	Short: "Store a summary for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummaryCreate,
}

var summaryGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Show the latest summary for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummaryGet,
}

func init() {
	summaryCreateCmd.Flags().StringSliceVar(&summaryTopics, "topic", nil, "topic covered (repeatable)")
	summaryCreateCmd.Flags().StringSliceVar(&summaryDecisions, "decision", nil, "decision made (repeatable)")
	summaryCreateCmd.Flags().StringSliceVar(&summaryNextSteps, "next", nil, "next step (repeatable)")
	summaryCreateCmd.Flags().StringSliceVar(&summaryKeyFiles, "key-file", nil, "file touched (repeatable)")
	summaryCmd.AddCommand(summaryCreateCmd)
	summaryCmd.AddCommand(summaryGetCmd)
	rootCmd.AddCommand(summaryCmd)
}

func runSummaryCreate(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := svc.CreateSessionSummary(cmd.Context(), memory.CreateSessionSummaryInput{
		SessionID: args[0],
		Topics:    summaryTopics,
		Decisions: summaryDecisions,
		NextSteps: summaryNextSteps,
		KeyFiles:  summaryKeyFiles,
	})
	if err != nil {
		return err
	}

	fmt.Printf("summary stored: %s\n", id)
	return nil
}

func runSummaryGet(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := svc.GetSessionSummary(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if summary == nil {
		return fmt.Errorf("no summary found for session %s", args[0])
	}

	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
