package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mnemo/pkg/memory"
	"mnemo/pkg/vcs"
)

var (
	storeType    string
	storeTags    []string
	storeSession string
	storeFile    string
	storeNoVCS   bool
)

var storeCmd = &cobra.Command{
	Use:   "store <content>",
	Short: "Store an observation",
	Long: `Store an observation with automatic deduplication. Branch and commit
provenance is captured from the surrounding git repository unless --no-vcs
is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runStore,
}

func init() {
	storeCmd.Flags().StringVar(&storeType, "type", "context", "observation type (code, decision, context, error, summary, execution, quality_gate)")
	storeCmd.Flags().StringSliceVar(&storeTags, "tag", nil, "tag to attach (repeatable)")
	storeCmd.Flags().StringVar(&storeSession, "session", "", "session id")
	storeCmd.Flags().StringVar(&storeFile, "file", "", "related file path")
	storeCmd.Flags().BoolVar(&storeNoVCS, "no-vcs", false, "skip VCS provenance capture")
	rootCmd.AddCommand(storeCmd)
}

func runStore(cmd *cobra.Command, args []string) error {
	obsType, err := memory.ParseObservationType(storeType)
	if err != nil {
		return err
	}

	metadata := memory.ObservationMetadata{
		SessionID: storeSession,
		FilePath:  storeFile,
	}
	if !storeNoVCS {
		metadata = vcs.Capture().Fill(metadata)
	}

	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	id, deduplicated, err := svc.StoreObservation(cmd.Context(), memory.StoreObservationInput{
		Content:  args[0],
		Type:     obsType,
		Tags:     storeTags,
		Metadata: metadata,
	})
	if err != nil {
		return err
	}

	if deduplicated {
		fmt.Printf("deduplicated: %s\n", id)
	} else {
		fmt.Printf("stored: %s\n", id)
	}
	return nil
}
