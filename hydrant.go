// Package hydrant maps domain objects to and from a flat, wire-friendly
// representation. Typed field descriptors locate values on an object graph,
// coerce them to transport-safe scalars, and resolve relations to either an
// embedded representation or an opaque reference locator.
//
// The descriptor engine lives in the field package. The bundle package
// carries per-operation state, the registry package wires named resources
// together, and the resource package provides a reference resource
// implementation backed by pluggable stores.
package hydrant

// Version is the library version. Overridden at build time for releases.
var Version = "dev"
