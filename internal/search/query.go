// Package search translates query strings into structured index queries and
// executes flat, grouped and streaming searches across indexing contexts.
package search

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mavenidx/mavenidx/internal/index"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// SearchType selects between exact and scored query construction.
type SearchType int

const (
	// Exact matches untokenized keyword terms.
	Exact SearchType = iota
	// Scored matches analyzed terms with relevance ranking.
	Scored
)

// NotPresent is the sentinel expression asking for "field has any value".
const NotPresent = "N/P"

// prefixBoost weights the prefix half of a scored keyword query.
const prefixBoost = 0.8

// QueryCreator builds structured queries from user expressions.
type QueryCreator struct{}

// NewQueryCreator creates a QueryCreator.
func NewQueryCreator() *QueryCreator {
	return &QueryCreator{}
}

// ConstructQuery translates expr against a logical field. It returns nil
// when the combination is unsatisfiable (an exact search on a field with no
// keyword variant). Parse trouble falls back to the legacy path internally
// and is never surfaced.
func (qc *QueryCreator) ConstructQuery(field schema.Field, expr string, typ SearchType) query.Query {
	fld := resolveField(field, typ)
	if fld == nil {
		return nil
	}

	if expr == NotPresent {
		return wildcardQuery(fld.Key, "*")
	}

	if typ == Exact {
		if !fld.Keyword {
			slog.Warn("exact_query_refused",
				slog.String("field", field.Name),
				slog.String("query", expr))
			return nil
		}
		if strings.ContainsAny(expr, "*?") {
			return wildcardQuery(fld.Key, expr)
		}
		return termQuery(fld.Key, expr)
	}

	if fld.Keyword {
		if strings.ContainsAny(expr, "*?") {
			return wildcardQuery(fld.Key, expr)
		}
		term := termQuery(fld.Key, expr)
		prefix := prefixQuery(fld.Key, expr)
		prefix.SetBoost(prefixBoost)
		return bleve.NewDisjunctionQuery(term, prefix)
	}

	return qc.scoredTokenized(field, fld, expr)
}

// scoredTokenized implements the scored path over an analyzed field.
func (qc *QueryCreator) scoredTokenized(field schema.Field, fld *schema.IndexerField, expr string) query.Query {
	rewritten := strings.ToLower(expr)
	if strings.ContainsAny(rewritten, ".-_") {
		var sb strings.Builder
		for _, r := range rewritten {
			switch r {
			case '.', '-', '_':
				sb.WriteByte(' ')
			default:
				sb.WriteRune(r)
			}
		}
		rewritten = sb.String()
	}
	if !strings.Contains(rewritten, "*") {
		rewritten += "*"
	}

	parsed := qc.parseTokens(fld.Key, rewritten)
	if parsed == nil {
		return qc.legacyQuery(fld, expr)
	}

	if strings.Contains(strings.TrimSpace(rewritten), " ") {
		phrase := bleve.NewMatchPhraseQuery(strings.ReplaceAll(rewritten, "*", ""))
		phrase.SetField(fld.Key)
		phrase.Analyzer = index.AnalyzerName
		parsed = bleve.NewDisjunctionQuery(parsed, phrase)
	}

	if !strings.Contains(expr, " ") && len(analyze(expr)) > 1 {
		if kw := qc.ConstructQuery(field, expr, Exact); kw != nil {
			return bleve.NewDisjunctionQuery(kw, parsed)
		}
	}
	return parsed
}

// parseTokens is the tokenizing parser: a conjunction over the whitespace
// tokens of the rewritten expression, default operator AND. Returns nil if
// no usable token survives.
func (qc *QueryCreator) parseTokens(key, rewritten string) query.Query {
	var clauses []query.Query
	for _, token := range strings.Fields(rewritten) {
		switch {
		case strings.Trim(token, "*?") == "":
			// Bare wildcard adds nothing to a conjunction.
			continue
		case strings.HasSuffix(token, "*") && !strings.ContainsAny(token[:len(token)-1], "*?"):
			clauses = append(clauses, prefixQuery(key, strings.TrimSuffix(token, "*")))
		case strings.ContainsAny(token, "*?"):
			clauses = append(clauses, wildcardQuery(key, token))
		default:
			match := bleve.NewMatchQuery(token)
			match.SetField(key)
			match.Analyzer = index.AnalyzerName
			match.SetOperator(query.MatchQueryOperatorAnd)
			prefix := prefixQuery(key, token)
			prefix.SetBoost(prefixBoost)
			clauses = append(clauses, bleve.NewDisjunctionQuery(match, prefix))
		}
	}
	if len(clauses) == 0 {
		return nil
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return bleve.NewConjunctionQuery(clauses...)
}

// legacyQuery is the anchor-driven fallback: ^ anchors the start, "<", "$"
// and a trailing space anchor the end, everything else is wrapped in
// wildcards. Classname expressions are normalised to slash form first.
func (qc *QueryCreator) legacyQuery(fld *schema.IndexerField, raw string) query.Query {
	expr := strings.ToLower(raw)
	isClass := fld.Ontology == "classnames"
	if isClass {
		expr = strings.ReplaceAll(expr, ".", "/")
	}

	anchoredStart := strings.HasPrefix(expr, "^")
	if anchoredStart {
		expr = expr[1:]
	}
	anchoredEnd := false
	for _, suffix := range []string{"<", "$", " "} {
		if strings.HasSuffix(expr, suffix) {
			expr = strings.TrimSuffix(expr, suffix)
			anchoredEnd = true
		}
	}

	if isClass && anchoredStart && !strings.HasPrefix(expr, "/") {
		expr = "/" + expr
	}
	if !anchoredStart && !strings.HasPrefix(expr, "*") {
		expr = "*" + expr
	}
	if !anchoredEnd && !strings.HasSuffix(expr, "*") {
		expr += "*"
	}
	if strings.Trim(expr, "*?") == "" {
		return nil
	}

	switch {
	case !strings.Contains(expr, "*"):
		return termQuery(fld.Key, expr)
	case strings.Count(expr, "*") == 1 && strings.HasSuffix(expr, "*") && !strings.Contains(expr, "?"):
		return prefixQuery(fld.Key, strings.TrimSuffix(expr, "*"))
	default:
		return wildcardQuery(fld.Key, expr)
	}
}

// resolveField picks the IndexerField variant matching the search type,
// falling back to the last declared variant.
func resolveField(field schema.Field, typ SearchType) *schema.IndexerField {
	if typ == Exact {
		if kw := field.KeywordVariant(); kw != nil {
			return kw
		}
	} else {
		if tok := field.TokenizedVariant(); tok != nil {
			return tok
		}
		if kw := field.KeywordVariant(); kw != nil {
			return kw
		}
	}
	return field.Last()
}

// analyze mimics the index analyzer for token counting: lowercase, split on
// any non-alphanumeric rune.
func analyze(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termQuery(key, term string) *query.TermQuery {
	q := bleve.NewTermQuery(term)
	q.SetField(key)
	return q
}

func prefixQuery(key, prefix string) *query.PrefixQuery {
	q := bleve.NewPrefixQuery(prefix)
	q.SetField(key)
	return q
}

func wildcardQuery(key, expr string) *query.WildcardQuery {
	q := bleve.NewWildcardQuery(expr)
	q.SetField(key)
	return q
}
