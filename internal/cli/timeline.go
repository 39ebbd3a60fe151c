package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mnemo/pkg/memory"
)

var (
	timelineBefore  int
	timelineAfter   int
	timelineSession string
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <observation-id>",
	Short: "Show observations around an anchor in chronological order",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimeline,
}

func init() {
	timelineCmd.Flags().IntVar(&timelineBefore, "before", 5, "observations before the anchor")
	timelineCmd.Flags().IntVar(&timelineAfter, "after", 5, "observations after the anchor")
	timelineCmd.Flags().StringVar(&timelineSession, "session", "", "filter by session id")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	var filter *memory.MemoryFilter
	if timelineSession != "" {
		filter = &memory.MemoryFilter{SessionID: timelineSession}
	}

	timeline, err := svc.GetTimeline(cmd.Context(), args[0], timelineBefore, timelineAfter, filter)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(timeline, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
