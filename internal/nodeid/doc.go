// internal/nodeid/doc.go

/*
Package nodeid provides a structured representation of socket addresses
within a canvas document, based on the canonical format `node.side[index]`.

The node segment is the node identifier (a name or a UUID), the side is
either `inputs` or `outputs` and the index is the position of the socket on
that side, e.g. `a1.outputs[0]` or `0b6e9f2c-4c1e-4e8e-9a55-3f7f0c8d2a11.inputs[2]`.

This package centralizes all formatting and parsing of socket addresses so the
document loader, the writer and the canvas agree on one schema.
*/
package nodeid
