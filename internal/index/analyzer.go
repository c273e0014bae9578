// Package index owns the on-disk inverted index: the IndexingContext with
// its lifecycle and locking, the descriptor document, the group cache and
// directory-level merge/replace.
package index

import (
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/mavenidx/mavenidx/internal/schema"
)

const (
	// TokenizerName is the registered name of the letter/digit tokenizer.
	TokenizerName = "nexus_letter_digit"

	// AnalyzerName is the registered name of the index analyzer. The same
	// pipeline runs at write, parse and count time; changing it changes the
	// wire format.
	AnalyzerName = "nexus"
)

func init() {
	_ = registry.RegisterTokenizer(TokenizerName, letterDigitTokenizerConstructor)
}

// letterDigitTokenizerConstructor creates the tokenizer for Bleve.
func letterDigitTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &letterDigitTokenizer{}, nil
}

// letterDigitTokenizer splits input on any non-alphanumeric rune.
type letterDigitTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *letterDigitTokenizer) Tokenize(input []byte) analysis.TokenStream {
	stream := make(analysis.TokenStream, 0, 8)
	pos := 1
	start := -1

	emit := func(end int) {
		if start < 0 {
			return
		}
		stream = append(stream, &analysis.Token{
			Term:     input[start:end],
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		start = -1
	}

	for i := 0; i < len(input); {
		r, size := utf8.DecodeRune(input[i:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
		} else {
			emit(i)
		}
		i += size
	}
	emit(len(input))
	return stream
}

// buildIndexMapping wires the schema into a bleve mapping: tokenized fields
// run through the nexus analyzer, keyword fields bypass analysis entirely.
func buildIndexMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(AnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     TokenizerName,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, err
	}
	im.DefaultAnalyzer = AnalyzerName

	dm := bleve.NewDocumentStaticMapping()
	add := func(key string, stored, indexed, kw bool) {
		fm := bleve.NewTextFieldMapping()
		fm.Store = stored
		fm.Index = indexed
		fm.IncludeInAll = false
		fm.IncludeTermVectors = false
		if kw {
			fm.Analyzer = keyword.Name
		} else {
			fm.Analyzer = AnalyzerName
		}
		dm.AddFieldMappingsAt(key, fm)
	}

	for _, f := range schema.Fields {
		for _, v := range f.Variants {
			add(v.Key, v.Stored, v.Indexed, v.Keyword)
		}
	}

	// Reserved fields: the UINFO key, the packed info, the tombstone marker,
	// the descriptor and the group lists.
	add(schema.KeyUInfo, true, true, true)
	add(schema.KeyInfo, true, false, true)
	add(schema.KeyDeleted, true, true, true)
	add(schema.KeyDescriptor, true, true, true)
	add(schema.KeyIdxInfo, true, false, true)
	add(schema.KeyTimestamp, true, false, true)
	add(schema.KeyIncarnation, true, false, true)
	add(schema.KeyGroupList, true, false, true)
	for _, key := range []string{"m", "sz", "md5", "fname"} {
		add(key, true, false, true)
	}

	im.DefaultMapping = dm
	im.StoreDynamic = false
	im.IndexDynamic = false
	return im, nil
}
