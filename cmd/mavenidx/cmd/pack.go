package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mavenidx/mavenidx/internal/packer"
)

// newPackCmd publishes the index as a snapshot plus incremental chunks.
func newPackCmd() *cobra.Command {
	var flags contextFlags
	var target string
	var chunks bool
	var chunkCount int
	var checksums bool

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Publish the index as downloadable snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, ictx, cfg, err := flags.openContext(true)
			if err != nil {
				return err
			}
			defer func() { _ = ictx.Close(false) }()

			if target == "" {
				target = cfg.Pack.TargetDir
			}
			if !cmd.Flags().Changed("chunks") {
				chunks = cfg.Pack.Chunks
			}
			if !cmd.Flags().Changed("chunk-count") {
				chunkCount = cfg.Pack.ChunkCount
			}
			if !cmd.Flags().Changed("checksums") {
				checksums = cfg.Pack.Checksums
			}

			if err := reg.IndexPacker.Pack(cmd.Context(), packer.Request{
				Context:                 ictx,
				TargetDir:               target,
				CreateChecksumFiles:     checksums,
				CreateIncrementalChunks: chunks,
				MaxIndexChunks:          chunkCount,
			}); err != nil {
				return err
			}
			cmd.Printf("Published index to %s\n", target)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&target, "target", "t", "", "Publication directory")
	cmd.Flags().BoolVar(&chunks, "chunks", true, "Maintain incremental chunks")
	cmd.Flags().IntVar(&chunkCount, "chunk-count", 32, "Maximum chunks to keep")
	cmd.Flags().BoolVar(&checksums, "checksums", true, "Write .sha1/.md5 siblings")
	return cmd
}
