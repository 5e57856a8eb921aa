// Package file provides the TOML-backed ConfigStore adapter. Nested
// tables are flattened to dot-notation keys on load, so callers read
// "retriever.score_threshold" rather than navigating maps.
package file
