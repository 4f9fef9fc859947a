package command

import "strings"

// Binding filters which members of a type a catalog exposes.
type Binding uint8

const (
	// Public admits exported members.
	Public Binding = 1 << iota
	// NonPublic admits unexported members. Only registered static members can
	// be unexported; reflection cannot reach unexported methods or fields.
	NonPublic
	// Instance admits methods and fields that need a receiver.
	Instance
	// Static admits registered package-level functions and variables.
	Static
)

// Has reports whether all bits of f are set in b.
func (b Binding) Has(f Binding) bool {
	return b&f == f
}

// String renders the set flags, e.g. "Public|Instance".
func (b Binding) String() string {
	var parts []string
	if b.Has(Public) {
		parts = append(parts, "Public")
	}
	if b.Has(NonPublic) {
		parts = append(parts, "NonPublic")
	}
	if b.Has(Instance) {
		parts = append(parts, "Instance")
	}
	if b.Has(Static) {
		parts = append(parts, "Static")
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "|")
}
