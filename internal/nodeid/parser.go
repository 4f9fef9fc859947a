// internal/nodeid/parser.go
package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// nodeRegex matches a node identifier: names and UUIDs, no dots.
	nodeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// socketRegex matches the socket segment, e.g. `outputs[1]`.
	socketRegex = regexp.MustCompile(`^(inputs|outputs)\[(\d+)\]$`)
)

// ValidNodeID reports whether id can be used in a socket address.
func ValidNodeID(id string) bool {
	return id != "-" && nodeRegex.MatchString(id)
}

// Parse creates a new Address by parsing its canonical string representation.
func Parse(raw string) (Address, error) {
	if raw == "" {
		return Address{}, fmt.Errorf("socket address cannot be empty")
	}

	dot := strings.LastIndexByte(raw, '.')
	if dot < 0 {
		return Address{}, fmt.Errorf("socket address %q has no socket segment", raw)
	}
	node, socket := raw[:dot], raw[dot+1:]
	if !ValidNodeID(node) {
		return Address{}, fmt.Errorf("invalid node identifier: %q", node)
	}

	matches := socketRegex.FindStringSubmatch(socket)
	if matches == nil {
		return Address{}, fmt.Errorf("invalid socket segment format: %q", socket)
	}
	index, err := strconv.Atoi(matches[2])
	if err != nil {
		return Address{}, fmt.Errorf("socket index %q: %w", matches[2], err)
	}
	return Address{Node: node, Side: Side(matches[1]), Index: index}, nil
}
