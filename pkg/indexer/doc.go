// Package indexer assembles the mavenidx component registry.
//
// The registry replaces container-style service location: it holds one
// constructed instance of each core collaborator (creator chain, query
// creator, search engine, index packer, scanner) and is passed by
// reference wherever those components are needed. There is no global
// state.
//
// # Usage
//
// Build a registry and open a context:
//
//	reg, err := indexer.NewRegistry()
//	if err != nil {
//	    return err
//	}
//	ctx, err := reg.OpenContext(index.Options{
//	    ID:             "central",
//	    RepositoryID:   "central",
//	    RepositoryPath: "/repo",
//	    IndexDir:       "/repo/.index",
//	})
//
// # Thread safety
//
// The registry itself is immutable after construction; the contexts it
// opens carry their own locking.
package indexer
