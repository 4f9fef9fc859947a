// internal/nodeid/types.go
package nodeid

// Side selects the input or output sockets of a node.
type Side string

const (
	Inputs  Side = "inputs"
	Outputs Side = "outputs"
)

// Address is the structured representation of a socket address.
type Address struct {
	Node  string
	Side  Side
	Index int
}

// Input returns the address of input i of node.
func Input(node string, i int) Address {
	return Address{Node: node, Side: Inputs, Index: i}
}

// Output returns the address of output i of node.
func Output(node string, i int) Address {
	return Address{Node: node, Side: Outputs, Index: i}
}

// IsInput reports whether the address names an input socket.
func (a Address) IsInput() bool { return a.Side == Inputs }
