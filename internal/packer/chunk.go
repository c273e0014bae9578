// Package packer publishes an indexing context as downloadable snapshots:
// one full file plus a bounded chain of incremental delta chunks.
package packer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mavenidx/mavenidx/internal/schema"
)

// IndexFileName is the base name of every published file.
const IndexFileName = "nexus-maven-repository-index"

// chunkMagic opens every v1 stream.
var chunkMagic = []byte{'N', 'I', 'D', 'X'}

// chunkVersion is the v1 stream version byte.
const chunkVersion byte = 1

// Field flag bits in the v1 stream.
const (
	flagIndexed byte = 1 << iota
	flagStored
	flagKeyword
)

// fieldFlags maps every storage key to its wire flags.
var fieldFlags = buildFieldFlags()

func buildFieldFlags() map[string]byte {
	m := map[string]byte{}
	set := func(key string, stored, indexed, keyword bool) {
		var f byte
		if indexed {
			f |= flagIndexed
		}
		if stored {
			f |= flagStored
		}
		if keyword {
			f |= flagKeyword
		}
		m[key] = f
	}
	for _, fld := range schema.Fields {
		for _, v := range fld.Variants {
			set(v.Key, v.Stored, v.Indexed, v.Keyword)
		}
	}
	for _, key := range schema.StoredOnly {
		if _, ok := m[key]; !ok {
			set(key, true, false, true)
		}
	}
	return m
}

// WriteChunk writes the v1 frame:
// [magic][version][timestamp millis BE][doc-count varint][document*].
func WriteChunk(w io.Writer, timestamp time.Time, docs []schema.Document) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(chunkMagic); err != nil {
		return err
	}
	if err := bw.WriteByte(chunkVersion); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, timestamp.UnixMilli()); err != nil {
		return err
	}
	writeUvarint(bw, uint64(len(docs)))

	for _, doc := range docs {
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		writeUvarint(bw, uint64(len(keys)))
		for _, k := range keys {
			writeUvarint(bw, uint64(len(k)))
			if _, err := bw.WriteString(k); err != nil {
				return err
			}
			if err := bw.WriteByte(fieldFlags[k]); err != nil {
				return err
			}
			v := doc[k]
			writeUvarint(bw, uint64(len(v)))
			if _, err := bw.WriteString(v); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadChunk parses a v1 frame back into its timestamp and documents.
func ReadChunk(r io.Reader) (time.Time, []schema.Document, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(chunkMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return time.Time{}, nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != string(chunkMagic) {
		return time.Time{}, nil, fmt.Errorf("bad magic %q", magic)
	}
	version, err := br.ReadByte()
	if err != nil {
		return time.Time{}, nil, err
	}
	if version != chunkVersion {
		return time.Time{}, nil, fmt.Errorf("unsupported chunk version %d", version)
	}
	var millis int64
	if err := binary.Read(br, binary.BigEndian, &millis); err != nil {
		return time.Time{}, nil, err
	}

	count, err := binary.ReadUvarint(br)
	if err != nil {
		return time.Time{}, nil, err
	}
	docs := make([]schema.Document, 0, count)
	for i := uint64(0); i < count; i++ {
		fields, err := binary.ReadUvarint(br)
		if err != nil {
			return time.Time{}, nil, err
		}
		doc := schema.Document{}
		for j := uint64(0); j < fields; j++ {
			name, err := readString(br)
			if err != nil {
				return time.Time{}, nil, err
			}
			if _, err := br.ReadByte(); err != nil { // flags
				return time.Time{}, nil, err
			}
			value, err := readString(br)
			if err != nil {
				return time.Time{}, nil, err
			}
			doc[name] = value
		}
		docs = append(docs, doc)
	}
	return time.UnixMilli(millis), docs, nil
}

func writeUvarint(bw *bufio.Writer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, _ = bw.Write(buf[:n])
}

func readString(br *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(br)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
