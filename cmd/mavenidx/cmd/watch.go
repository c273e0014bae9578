package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mavenidx/mavenidx/internal/index"
	"github.com/mavenidx/mavenidx/internal/packer"
	"github.com/mavenidx/mavenidx/internal/scanner"
	"github.com/mavenidx/mavenidx/internal/watcher"
	"github.com/mavenidx/mavenidx/pkg/indexer"
)

// newWatchCmd keeps the index in sync with the repository as artifacts
// appear and disappear, republishing after each batch.
func newWatchCmd() *cobra.Command {
	var flags contextFlags
	var target string
	var debounce time.Duration
	var pack bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow repository changes and update the index incrementally",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, ictx, cfg, err := flags.openContext(true)
			if err != nil {
				return err
			}
			defer func() { _ = ictx.Close(false) }()

			if target == "" {
				target = cfg.Pack.TargetDir
			}

			// Initial full scan so the watcher starts from a current index.
			count, err := reg.IndexRepository(cmd.Context(), ictx)
			if err != nil {
				return err
			}
			slog.Info("initial_scan_complete", slog.Int("artifacts", count))

			w, err := watcher.New(cfg.Repository.Path, debounce, scanner.SkipFile)
			if err != nil {
				return err
			}
			defer w.Stop()
			w.Start(cmd.Context())

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case batch, ok := <-w.Events():
					if !ok {
						return nil
					}
					changed := 0
					for _, ev := range batch {
						if err := applyEvent(reg, ictx, cfg.Repository.Path, ev); err != nil {
							slog.Warn("event_skipped",
								slog.String("path", ev.Path),
								slog.String("error", err.Error()))
							continue
						}
						changed++
					}
					if changed == 0 {
						continue
					}
					if err := ictx.Commit(); err != nil {
						return err
					}
					if err := ictx.RebuildGroups(); err != nil {
						return err
					}
					if pack {
						if err := reg.IndexPacker.Pack(cmd.Context(), packer.Request{
							Context:                 ictx,
							TargetDir:               target,
							CreateChecksumFiles:     cfg.Pack.Checksums,
							CreateIncrementalChunks: cfg.Pack.Chunks,
							MaxIndexChunks:          cfg.Pack.ChunkCount,
						}); err != nil {
							return err
						}
					}
					slog.Info("batch_applied", slog.Int("events", changed))
				}
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&target, "target", "t", "", "Publication directory")
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounceWindow, "Event debounce window")
	cmd.Flags().BoolVar(&pack, "pack", false, "Republish after each applied batch")
	return cmd
}

// applyEvent folds one debounced file event into the context.
func applyEvent(reg *indexer.Registry, ictx *index.Context, root string, ev watcher.FileEvent) error {
	res := reg.Scanner.ScanOne(root, ictx.RepositoryID(), ev.Path)
	switch ev.Operation {
	case watcher.OpCreate, watcher.OpModify:
		if res.Err != nil {
			return res.Err
		}
		return ictx.IndexArtifactContext(res.Context)
	case watcher.OpDelete:
		if res.Context == nil {
			return res.Err
		}
		return ictx.DeleteArtifact(res.Context.Info.UInfo())
	}
	return nil
}
