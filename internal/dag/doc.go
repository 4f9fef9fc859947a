// Package dag holds the dependency graph behind a canvas. Vertices are node
// IDs; an edge from a to b means b reads one of a's outputs. The graph keeps
// the insertion order of its vertices so topological walks are stable.
package dag
