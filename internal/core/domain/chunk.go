package domain

// SourceKind distinguishes the two corpora a chunk can originate from.
type SourceKind string

const (
	// SourceDoc marks prose documentation (guides, release notes).
	SourceDoc SourceKind = "doc"

	// SourceDiff marks structured version-transition code diffs.
	SourceDiff SourceKind = "diff"
)

// Valid reports whether the kind is one of the known corpus kinds.
func (k SourceKind) Valid() bool {
	return k == SourceDoc || k == SourceDiff
}

// Chunk is the atomic unit of retrievable knowledge.
// Chunks are created once at ingestion time and never mutated.
type Chunk struct {
	// ID is a stable identifier, unique across the whole corpus.
	// Derived from the origin path and offset (or diff identifier),
	// so re-ingesting the same corpus yields the same IDs.
	ID string

	// Text is the normalised UTF-8 content of the chunk.
	Text string

	// Kind distinguishes documentation from diff chunks.
	Kind SourceKind

	// SourceTag is the version identifier the chunk belongs to.
	// For docs this is a release string (e.g. "v7.0.0"); for diffs
	// a version-pair ("6.1.0->7.0.0").
	SourceTag string

	// OriginPath is the original file path or diff record identifier,
	// retained for citation.
	OriginPath string

	// Ordinal is the position of the chunk in the persisted corpus.
	// It aligns the metadata row with the vector file row.
	Ordinal int
}

// RawDocRecord is a documentation record as produced by the external
// ingestion collaborator.
type RawDocRecord struct {
	Path       string `json:"path"`
	VersionTag string `json:"version_tag"`
	Text       string `json:"text"`
}

// RawDiffRecord is a version-transition diff record as produced by the
// external ingestion collaborator.
type RawDiffRecord struct {
	VersionFrom string `json:"version_from"`
	VersionTo   string `json:"version_to"`
	FilePath    string `json:"file_path"`
	Before      string `json:"before"`
	After       string `json:"after"`
}

// TransitionTag renders the version-pair source tag for a diff record.
func (r RawDiffRecord) TransitionTag() string {
	return r.VersionFrom + "->" + r.VersionTo
}
