// internal/nodeid/address.go
package nodeid

import (
	"fmt"
	"strings"
)

// String serializes the Address into its canonical string representation.
func (a Address) String() string {
	var sb strings.Builder
	sb.WriteString(a.Node)
	sb.WriteRune('.')
	sb.WriteString(string(a.Side))
	sb.WriteString(fmt.Sprintf("[%d]", a.Index))
	return sb.String()
}
