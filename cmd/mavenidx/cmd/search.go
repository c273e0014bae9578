package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mavenidx/mavenidx/internal/schema"
	"github.com/mavenidx/mavenidx/internal/search"
)

// newSearchCmd runs a flat search against the index.
func newSearchCmd() *cobra.Command {
	var flags contextFlags
	var field string
	var searchType string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <expression>",
		Short: "Search the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fld, ok := schema.FieldByName(field)
			if !ok {
				return fmt.Errorf("unknown field %q", field)
			}
			typ := search.Scored
			switch searchType {
			case "scored":
			case "exact":
				typ = search.Exact
			default:
				return fmt.Errorf("unknown search type %q (exact, scored)", searchType)
			}

			reg, ictx, _, err := flags.openContext(true)
			if err != nil {
				return err
			}
			defer func() { _ = ictx.Close(false) }()

			q := reg.QueryCreator.ConstructQuery(fld, args[0], typ)
			if q == nil {
				return fmt.Errorf("cannot construct a %s query for field %q", searchType, field)
			}
			res, err := reg.SearchEngine.ForceFlatSearch(cmd.Context(), search.FlatRequest{
				Query:          q,
				ResultHitLimit: limit,
			}, ictx)
			if err != nil {
				return err
			}
			if res.TotalHits == search.LimitExceeded {
				cmd.Printf("More than %d hits, refine the query\n", limit)
				return nil
			}
			for _, ai := range res.Results.List() {
				printArtifact(cmd, ai.GroupID, ai.ArtifactID, ai.Version, ai.Classifier, ai.Packaging)
			}
			cmd.Printf("%d hits\n", res.TotalHits)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&field, "field", "f", "artifactId", "Logical field to search")
	cmd.Flags().StringVar(&searchType, "type", "scored", "Search type: exact or scored")
	cmd.Flags().IntVar(&limit, "limit", 1000, "Result hit limit")
	return cmd
}
