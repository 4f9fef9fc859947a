// Package registry provides the session-owned type registry that lets
// persisted type names be turned back into runtime types.
//
// Go cannot look a type up by name at runtime, so every type that a canvas
// may bind to is registered here by a Module. Besides the name to type
// mapping, the registry holds the "static" members of a type (package-level
// functions and variables attached to an owner type), named object
// instances that serve as persisted target references, and optional
// parameter names for members whose signatures are exposed as sockets.
//
// During application startup, the registry is populated by the compiled-in
// modules and then validated, so that mistakes in module registration
// surface before any canvas is evaluated.
package registry
