package packer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/renameio"
)

// Publication property keys.
const (
	PropID              = "nexus.index.id"
	PropTimestamp       = "nexus.index.timestamp"
	PropChainID         = "nexus.index.chain-id"
	PropLastIncremental = "nexus.index.last-incremental"
	PropIncrementalFmt  = "nexus.index.incremental-%d"
)

// Properties is the text property map published beside the snapshot.
type Properties map[string]string

// ReadProperties loads the properties file; a missing file yields an empty
// map and no error.
func ReadProperties(path string) (Properties, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Properties{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	props := Properties{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			props[line[:i]] = line[i+1:]
		}
	}
	return props, scanner.Err()
}

// WriteProperties persists the map atomically (write-then-rename) so a
// failure mid-flight leaves the previous snapshot valid.
func WriteProperties(path string, props Properties) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(props[k])
		sb.WriteByte('\n')
	}
	return renameio.WriteFile(path, []byte(sb.String()), 0o644)
}

// Incremental returns the chunk counter at position n, or -1.
func (p Properties) Incremental(n int) int {
	v, ok := p[fmt.Sprintf(PropIncrementalFmt, n)]
	if !ok {
		return -1
	}
	var counter int
	if _, err := fmt.Sscanf(v, "%d", &counter); err != nil {
		return -1
	}
	return counter
}

// LastIncremental returns the highest chunk counter ever emitted, or -1.
func (p Properties) LastIncremental() int {
	v, ok := p[PropLastIncremental]
	if !ok {
		return -1
	}
	var counter int
	if _, err := fmt.Sscanf(v, "%d", &counter); err != nil {
		return -1
	}
	return counter
}

// Baseline records, at pack time, the chain identity and the UINFO set of
// the last published snapshot. The delta of the next pack is computed by
// set difference against it; a lost or mismatched baseline resets the chain.
type Baseline struct {
	ChainID     string   `json:"chainId"`
	Incarnation string   `json:"incarnation"`
	UInfos      []string `json:"uinfos"`
}

// baselineFileName stores the Baseline beside the published files.
const baselineFileName = IndexFileName + ".baseline"

// ReadBaseline loads the baseline file; a missing file yields nil.
func ReadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		// A corrupt baseline only costs one full snapshot.
		return nil, nil
	}
	return &b, nil
}

// WriteBaseline persists the baseline atomically.
func WriteBaseline(path string, b *Baseline) error {
	sort.Strings(b.UInfos)
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}
