// Package driving defines the inbound ports of the core: the query and
// analysis operations exposed to CLI/GUI collaborators.
package driving
