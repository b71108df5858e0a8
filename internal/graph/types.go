// Package graph builds the table dependency graph of a catalog and orders
// tables so that every referenced row is inserted before the rows pointing
// at it.
package graph

import "sort"

// Node is one table of the graph.
type Node struct {
	Name          string   // table name
	Models        []string // models stored in the table
	PrimaryKey    string
	SelfReference bool // a belongs-to of the table points back at it
}

// Edge points from a referenced table to the table holding the foreign key.
type Edge struct {
	From string
	To   string
}

// EdgeMeta describes the belongs-to associations behind an edge.
type EdgeMeta struct {
	ForeignKeys  []string // columns in the child table
	ReferenceKey string   // primary key of the parent table
	Associations []string // Model.association names
	Optional     bool     // every association behind the edge is optional
}

// Graph is the dependency structure of a catalog.
type Graph struct {
	Nodes        map[string]*Node
	Children     map[string][]string // referenced table -> referencing tables
	Parents      map[string][]string // referencing table -> referenced tables
	edgeMetadata map[Edge]*EdgeMeta
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:        make(map[string]*Node),
		Children:     make(map[string][]string),
		Parents:      make(map[string][]string),
		edgeMetadata: make(map[Edge]*EdgeMeta),
	}
}

// AddNode adds a table. If node is nil, a node with default values is created.
// Adding an existing table keeps the node already there.
func (g *Graph) AddNode(name string, node *Node) *Node {
	if existing, ok := g.Nodes[name]; ok {
		return existing
	}
	if node == nil {
		node = &Node{}
	}
	node.Name = name
	g.Nodes[name] = node
	return node
}

// AddEdge records that child references parent. Repeated edges are merged.
func (g *Graph) AddEdge(parent, child string) {
	if _, ok := g.edgeMetadata[Edge{From: parent, To: child}]; ok {
		return
	}
	g.edgeMetadata[Edge{From: parent, To: child}] = &EdgeMeta{Optional: true}
	g.Children[parent] = append(g.Children[parent], child)
	g.Parents[child] = append(g.Parents[child], parent)
}

// AddEdgeWithMeta adds an edge and merges the association into its metadata.
func (g *Graph) AddEdgeWithMeta(parent, child, foreignKey, referenceKey, association string, optional bool) {
	g.AddEdge(parent, child)
	meta := g.edgeMetadata[Edge{From: parent, To: child}]
	meta.ForeignKeys = appendUnique(meta.ForeignKeys, foreignKey)
	meta.Associations = appendUnique(meta.Associations, association)
	if meta.ReferenceKey == "" {
		meta.ReferenceKey = referenceKey
	}
	meta.Optional = meta.Optional && optional
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func (g *Graph) GetChildren(parent string) []string {
	return g.Children[parent]
}

func (g *Graph) GetParents(child string) []string {
	return g.Parents[child]
}

// GetNode returns the node of a table, or nil if not found.
func (g *Graph) GetNode(name string) *Node {
	return g.Nodes[name]
}

// GetEdgeMeta returns metadata for an edge, or nil if not found.
func (g *Graph) GetEdgeMeta(parent, child string) *EdgeMeta {
	return g.edgeMetadata[Edge{From: parent, To: child}]
}

func (g *Graph) HasNode(name string) bool {
	_, exists := g.Nodes[name]
	return exists
}

func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

func (g *Graph) EdgeCount() int {
	return len(g.edgeMetadata)
}

// AllNodes returns the table names in sorted order.
func (g *Graph) AllNodes() []string {
	nodes := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)
	return nodes
}

// AllEdges returns every edge sorted by parent, then child.
func (g *Graph) AllEdges() []Edge {
	edges := make([]Edge, 0, len(g.edgeMetadata))
	for e := range g.edgeMetadata {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// LeafNodes returns the tables nothing references, sorted.
func (g *Graph) LeafNodes() []string {
	var leaves []string
	for _, name := range g.AllNodes() {
		if len(g.Children[name]) == 0 {
			leaves = append(leaves, name)
		}
	}
	return leaves
}

func (g *Graph) InDegree(name string) int {
	return len(g.Parents[name])
}

func (g *Graph) OutDegree(name string) int {
	return len(g.Children[name])
}
