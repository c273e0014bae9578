package schema

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mavenidx/mavenidx/internal/artifact"
)

// MinimalArtifactInfoIndexCreator computes the coordinate, size, timestamp,
// checksums and packaging of an artifact and owns the core identity fields.
type MinimalArtifactInfoIndexCreator struct{}

// NewMinimalArtifactInfoIndexCreator creates the minimal creator.
func NewMinimalArtifactInfoIndexCreator() *MinimalArtifactInfoIndexCreator {
	return &MinimalArtifactInfoIndexCreator{}
}

// ID implements IndexCreator.
func (c *MinimalArtifactInfoIndexCreator) ID() string { return "min" }

// Fields implements IndexCreator.
func (c *MinimalArtifactInfoIndexCreator) Fields() []IndexerField {
	var out []IndexerField
	for _, f := range []Field{FieldGroupID, FieldArtifactID, FieldVersion,
		FieldPackaging, FieldClassifier, FieldName, FieldDescription, FieldSHA1} {
		out = append(out, f.Variants...)
	}
	return out
}

// pomProject is the subset of a pom.xml we read back.
type pomProject struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Packaging   string `xml:"packaging"`
}

// Populate implements IndexCreator. It stats and hashes the artifact file
// and, when a pom is available, lifts name, description and packaging.
func (c *MinimalArtifactInfoIndexCreator) Populate(ac *artifact.Context) error {
	ai := ac.Info

	fi := ac.Stat()
	if fi == nil {
		return fmt.Errorf("artifact vanished: %s", ac.ArtifactPath)
	}
	ai.Size = fi.Size()
	ai.LastModified = fi.ModTime().UnixMilli()
	ai.FName = filepath.Base(ac.ArtifactPath)

	if ac.SHA1 != "" {
		ai.SHA1 = ac.SHA1
		ai.MD5 = ac.MD5
	} else {
		sha1sum, md5sum, err := hashFile(ac.ArtifactPath)
		if err != nil {
			return fmt.Errorf("hash %s: %w", ac.ArtifactPath, err)
		}
		ai.SHA1 = sha1sum
		ai.MD5 = md5sum
	}

	c.populateFromPom(ac)
	return nil
}

// populateFromPom reads <name>, <description> and <packaging> from the
// artifact itself when it is a pom, or from the sibling pom otherwise.
// Packaging is only taken over for non-pom artifacts.
func (c *MinimalArtifactInfoIndexCreator) populateFromPom(ac *artifact.Context) {
	pomPath := ac.ArtifactPath
	if ac.Info.Extension != "pom" {
		base := strings.TrimSuffix(filepath.Base(ac.ArtifactPath), "."+ac.Info.Extension)
		if ac.Info.Classifier != "" {
			base = strings.TrimSuffix(base, "-"+ac.Info.Classifier)
		}
		pomPath = filepath.Join(filepath.Dir(ac.ArtifactPath), base+".pom")
	}

	data, err := os.ReadFile(pomPath)
	if err != nil {
		return
	}
	var proj pomProject
	if err := xml.Unmarshal(data, &proj); err != nil {
		ac.AddError(fmt.Errorf("parse pom %s: %w", pomPath, err))
		return
	}
	ac.Info.Name = strings.TrimSpace(proj.Name)
	ac.Info.Description = strings.TrimSpace(proj.Description)
	if p := strings.TrimSpace(proj.Packaging); p != "" && ac.Info.Extension != "pom" {
		ac.Info.Packaging = p
	}
}

// UpdateDocument implements IndexCreator.
func (c *MinimalArtifactInfoIndexCreator) UpdateDocument(ai *artifact.ArtifactInfo, doc Document) {
	doc[KeyUInfo] = ai.UInfo()
	doc[KeyInfo] = strings.Join([]string{
		ai.Packaging,
		strconv.FormatInt(ai.LastModified, 10),
		strconv.FormatInt(ai.Size, 10),
		ai.Extension,
	}, artifact.FS)

	doc["g"] = ai.GroupID
	doc["groupId"] = ai.GroupID
	doc["a"] = ai.ArtifactID
	doc["artifactId"] = ai.ArtifactID
	doc["v"] = ai.Version
	doc["version"] = ai.Version
	doc["p"] = ai.Packaging
	if ai.Classifier != "" {
		doc["l"] = ai.Classifier
	}
	if ai.Name != "" {
		doc["n"] = ai.Name
	}
	if ai.Description != "" {
		doc["d"] = ai.Description
	}
	if ai.SHA1 != "" {
		doc["1"] = ai.SHA1
	}
	if ai.MD5 != "" {
		doc["md5"] = ai.MD5
	}
	doc["m"] = strconv.FormatInt(ai.LastModified, 10)
	doc["sz"] = strconv.FormatInt(ai.Size, 10)
	if ai.FName != "" {
		doc["fname"] = ai.FName
	}
}

// UpdateArtifactInfo implements IndexCreator.
func (c *MinimalArtifactInfoIndexCreator) UpdateArtifactInfo(doc Document, ai *artifact.ArtifactInfo) bool {
	uinfo := doc.Get(KeyUInfo)
	if uinfo == "" {
		return false
	}
	if !ai.SetFieldsFromUInfo(uinfo) {
		return false
	}

	if info := doc.Get(KeyInfo); info != "" {
		parts := strings.Split(info, artifact.FS)
		if len(parts) == 4 {
			ai.Packaging = parts[0]
			ai.LastModified, _ = strconv.ParseInt(parts[1], 10, 64)
			ai.Size, _ = strconv.ParseInt(parts[2], 10, 64)
		}
	}
	ai.Name = doc.Get("n")
	ai.Description = doc.Get("d")
	ai.SHA1 = doc.Get("1")
	ai.MD5 = doc.Get("md5")
	ai.FName = doc.Get("fname")
	return true
}

// hashFile computes the sha1 and md5 digests of one file in a single pass.
func hashFile(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	s := sha1.New()
	m := md5.New()
	if _, err := io.Copy(io.MultiWriter(s, m), f); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(s.Sum(nil)), hex.EncodeToString(m.Sum(nil)), nil
}
