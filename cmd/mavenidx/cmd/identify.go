package cmd

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/spf13/cobra"
)

// sha1Re matches a hex sha1 digest.
var sha1Re = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// newIdentifyCmd finds the coordinates of a file or digest.
func newIdentifyCmd() *cobra.Command {
	var flags contextFlags

	cmd := &cobra.Command{
		Use:   "identify <file-or-sha1>",
		Short: "Identify an artifact by file or sha1 digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest := args[0]
			if !sha1Re.MatchString(digest) {
				sum, err := sha1File(digest)
				if err != nil {
					return err
				}
				digest = sum
			}

			reg, ictx, _, err := flags.openContext(true)
			if err != nil {
				return err
			}
			defer func() { _ = ictx.Close(false) }()

			hits, err := reg.IdentifyBySHA1(cmd.Context(), digest, ictx)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				cmd.Printf("No artifact matches %s\n", digest)
				return nil
			}
			for _, ai := range hits {
				printArtifact(cmd, ai.GroupID, ai.ArtifactID, ai.Version, ai.Classifier, ai.Packaging)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// sha1File hashes a local file.
func sha1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
