package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mnemo/pkg/memory"
)

var (
	searchLimit   int
	searchSession string
	searchRepo    string
	searchBranch  string
	searchType    string
	searchTags    []string
	searchFull    bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored observations",
	Long: `Search observations with hybrid full-text + semantic retrieval.
Results are ranked by reciprocal rank fusion; filters narrow by session,
repository, branch, type and tags.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().StringVar(&searchSession, "session", "", "filter by session id")
	searchCmd.Flags().StringVar(&searchRepo, "repo", "", "filter by repository id")
	searchCmd.Flags().StringVar(&searchBranch, "branch", "", "filter by branch")
	searchCmd.Flags().StringVar(&searchType, "type", "", "filter by observation type")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "filter by tag (repeatable)")
	searchCmd.Flags().BoolVar(&searchFull, "full", false, "print full observations instead of previews")
	rootCmd.AddCommand(searchCmd)
}

func buildSearchFilter() (*memory.MemoryFilter, error) {
	filter := &memory.MemoryFilter{
		SessionID: searchSession,
		RepoID:    searchRepo,
		Branch:    searchBranch,
		Tags:      searchTags,
	}
	if searchType != "" {
		obsType, err := memory.ParseObservationType(searchType)
		if err != nil {
			return nil, err
		}
		filter.Type = obsType
	}
	return filter, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	filter, err := buildSearchFilter()
	if err != nil {
		return err
	}

	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	var out any
	if searchFull {
		out, err = svc.SearchMemories(cmd.Context(), args[0], filter, searchLimit)
	} else {
		out, err = svc.MemorySearch(cmd.Context(), args[0], filter, searchLimit)
	}
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
