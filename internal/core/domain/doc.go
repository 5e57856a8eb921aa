// Package domain contains the core business types for railsup.
// Types here have no dependencies on infrastructure - they represent
// the ubiquitous language of Rails upgrade analysis: chunks of indexed
// knowledge, pattern detections, and upgrade suggestions.
package domain
