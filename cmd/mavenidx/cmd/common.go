package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mavenidx/mavenidx/internal/config"
	"github.com/mavenidx/mavenidx/internal/index"
	"github.com/mavenidx/mavenidx/pkg/indexer"
)

// contextFlags are the repository/index flags shared by the subcommands that
// open an index.
type contextFlags struct {
	repository string
	indexDir   string
	name       string
	reclaim    bool
}

// register adds the shared flags to a command.
func (f *contextFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.repository, "repository", "r", ".", "Local repository root")
	cmd.Flags().StringVarP(&f.indexDir, "index", "i", "", "Index directory (default <repository>/.index)")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Repository id (default basename of the root)")
	cmd.Flags().BoolVar(&f.reclaim, "reclaim", false, "Take ownership of a foreign or undescribed index")
}

// load resolves the flags over the repository configuration file.
func (f *contextFlags) load() (*config.Config, error) {
	cfg, err := config.LoadFromRepo(f.repository)
	if err != nil {
		return nil, err
	}
	if f.indexDir != "" {
		cfg.Index.Dir = f.indexDir
	}
	if f.name != "" {
		cfg.Repository.ID = f.name
	}
	return cfg, cfg.Validate()
}

// openContext builds the registry and opens the configured context.
func (f *contextFlags) openContext(searchable bool) (*indexer.Registry, *index.Context, *config.Config, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, nil, nil, err
	}
	reg, err := indexer.NewRegistry()
	if err != nil {
		return nil, nil, nil, err
	}
	ictx, err := reg.OpenContext(index.Options{
		ID:             cfg.Repository.ID,
		RepositoryID:   cfg.Repository.ID,
		RepositoryPath: cfg.Repository.Path,
		RepositoryURL:  cfg.Repository.URL,
		IndexUpdateURL: cfg.Repository.IndexUpdateURL,
		IndexDir:       cfg.Index.Dir,
		Reclaim:        f.reclaim,
		Searchable:     searchable,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return reg, ictx, cfg, nil
}

// printArtifact renders one result line.
func printArtifact(cmd *cobra.Command, groupID, artifactID, version, classifier, packaging string) {
	coord := fmt.Sprintf("%s:%s:%s", groupID, artifactID, version)
	if classifier != "" {
		coord += ":" + classifier
	}
	cmd.Printf("%s (%s)\n", coord, packaging)
}
