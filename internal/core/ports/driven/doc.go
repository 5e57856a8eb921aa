// Package driven defines the outbound ports of the core: the
// infrastructure capabilities the services consume (embedding,
// vector search, generation, persistence, rules).
package driven
