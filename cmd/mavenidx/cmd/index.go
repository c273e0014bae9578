package cmd

import (
	"github.com/spf13/cobra"
)

// newIndexCmd scans the repository and (re)builds the index.
func newIndexCmd() *cobra.Command {
	var flags contextFlags

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Scan the repository and update the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, ictx, _, err := flags.openContext(true)
			if err != nil {
				return err
			}
			defer func() { _ = ictx.Close(false) }()

			count, err := reg.IndexRepository(cmd.Context(), ictx)
			if err != nil {
				return err
			}
			cmd.Printf("Indexed %d artifacts into %s\n", count, ictx.IndexDir())
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
