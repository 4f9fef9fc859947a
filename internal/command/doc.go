// Package command describes the callable members of a type in a uniform
// way. A Command is either a method (instance method or registered static
// function) or a field (struct field or registered static variable); both
// variants are invoked through the same small interface so that the rest of
// the system never branches on member kind after construction.
//
// Catalogs of commands are built by reflection and cached per
// (type, binding) pair in a Cache owned by the session.
package command
