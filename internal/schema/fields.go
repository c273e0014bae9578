// Package schema declares the index document schema: the field registry
// and the IndexCreator plug-ins that populate and extract artifact records.
package schema

// Storage keys of the reserved, creator-independent fields.
const (
	KeyUInfo       = "u"
	KeyInfo        = "i"
	KeyDeleted     = "del"
	KeyDescriptor  = "DESCRIPTOR"
	KeyIdxInfo     = "IDXINFO"
	KeyTimestamp   = "ts"
	KeyIncarnation = "inc"
	KeyGroupList   = "list"
)

// DescriptorValue is the marker value of the descriptor document.
const DescriptorValue = "NexusIndex"

// IndexerField is one physical schema element backing a logical field.
type IndexerField struct {
	// Ontology is the symbolic field name, e.g. "groupId".
	Ontology string
	// Key is the on-disk storage key, e.g. "g".
	Key string
	// Stored fields can be read back from a hit.
	Stored bool
	// Indexed fields are searchable.
	Indexed bool
	// Keyword fields bypass the analyzer (untokenized).
	Keyword bool
}

// Field is a logical name with one or more backing IndexerFields,
// typically a keyword variant and a tokenized variant.
type Field struct {
	Name     string
	Variants []IndexerField
}

// KeywordVariant returns the first keyword variant, or nil.
func (f Field) KeywordVariant() *IndexerField {
	for i := range f.Variants {
		if f.Variants[i].Keyword {
			return &f.Variants[i]
		}
	}
	return nil
}

// TokenizedVariant returns the first non-keyword indexed variant, or nil.
func (f Field) TokenizedVariant() *IndexerField {
	for i := range f.Variants {
		if !f.Variants[i].Keyword && f.Variants[i].Indexed {
			return &f.Variants[i]
		}
	}
	return nil
}

// Last returns the last declared variant.
func (f Field) Last() *IndexerField {
	if len(f.Variants) == 0 {
		return nil
	}
	return &f.Variants[len(f.Variants)-1]
}

// The searchable logical fields.
var (
	FieldGroupID = Field{Name: "groupId", Variants: []IndexerField{
		{Ontology: "groupId", Key: "g", Indexed: true, Keyword: true},
		{Ontology: "groupId", Key: "groupId", Indexed: true},
	}}
	FieldArtifactID = Field{Name: "artifactId", Variants: []IndexerField{
		{Ontology: "artifactId", Key: "a", Indexed: true, Keyword: true},
		{Ontology: "artifactId", Key: "artifactId", Indexed: true},
	}}
	FieldVersion = Field{Name: "version", Variants: []IndexerField{
		{Ontology: "version", Key: "v", Indexed: true, Keyword: true},
		{Ontology: "version", Key: "version", Indexed: true},
	}}
	FieldPackaging = Field{Name: "packaging", Variants: []IndexerField{
		{Ontology: "packaging", Key: "p", Indexed: true, Keyword: true},
	}}
	FieldClassifier = Field{Name: "classifier", Variants: []IndexerField{
		{Ontology: "classifier", Key: "l", Indexed: true, Keyword: true},
	}}
	FieldName = Field{Name: "name", Variants: []IndexerField{
		{Ontology: "name", Key: "n", Stored: true, Indexed: true},
	}}
	FieldDescription = Field{Name: "description", Variants: []IndexerField{
		{Ontology: "description", Key: "d", Stored: true, Indexed: true},
	}}
	FieldSHA1 = Field{Name: "sha1", Variants: []IndexerField{
		{Ontology: "sha1", Key: "1", Stored: true, Indexed: true, Keyword: true},
	}}
	FieldClassNames = Field{Name: "classnames", Variants: []IndexerField{
		{Ontology: "classnames", Key: "classnames_kw", Indexed: true, Keyword: true},
		{Ontology: "classnames", Key: "classnames", Stored: true, Indexed: true},
	}}
)

// Fields lists every searchable logical field, in declaration order.
var Fields = []Field{
	FieldGroupID,
	FieldArtifactID,
	FieldVersion,
	FieldPackaging,
	FieldClassifier,
	FieldName,
	FieldDescription,
	FieldSHA1,
	FieldClassNames,
}

// FieldByName resolves a logical field name.
func FieldByName(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// StoredOnly lists the storage keys that exist on documents but back no
// logical search field.
var StoredOnly = []string{
	KeyUInfo, KeyInfo, "m", "sz", "md5", "fname", KeyDeleted,
	KeyIdxInfo, KeyTimestamp, KeyIncarnation, KeyGroupList,
}

// Document is the transport form of one index document: storage key to
// string value. All values are strings on the wire.
type Document map[string]string

// Get returns the value for a storage key, or "".
func (d Document) Get(key string) string {
	return d[key]
}

// Has reports whether the key is present and non-empty.
func (d Document) Has(key string) bool {
	return d[key] != ""
}
