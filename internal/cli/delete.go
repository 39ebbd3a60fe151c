package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <observation-id>",
	Short: "Delete an observation and its vector index entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.DeleteObservation(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Printf("deleted: %s\n", args[0])
	return nil
}
