// Package services contains the core application services: corpus
// ingestion, deterministic pattern detection, semantic retrieval, and
// suggestion composition. Services depend only on domain types and
// ports, never on concrete adapters.
package services
