package graph

import (
	"container/list"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ProcessingQueue holds the tables whose parents are all placed.
type ProcessingQueue struct {
	queue *list.List
}

func NewProcessingQueue() *ProcessingQueue {
	return &ProcessingQueue{queue: list.New()}
}

// InitializeQueue creates a queue holding every table with in-degree 0, in
// name order.
func (g *Graph) InitializeQueue(inDegree map[string]int) *ProcessingQueue {
	pq := NewProcessingQueue()
	for _, name := range g.AllNodes() {
		if inDegree[name] == 0 {
			pq.Enqueue(name)
		}
	}
	return pq
}

func (pq *ProcessingQueue) Enqueue(node string) {
	pq.queue.PushBack(node)
}

// Dequeue removes and returns the table at the front of the queue.
func (pq *ProcessingQueue) Dequeue() (string, bool) {
	if pq.queue.Len() == 0 {
		return "", false
	}
	elem := pq.queue.Front()
	pq.queue.Remove(elem)
	return elem.Value.(string), true
}

func (pq *ProcessingQueue) Len() int {
	return pq.queue.Len()
}

func (pq *ProcessingQueue) IsEmpty() bool {
	return pq.queue.Len() == 0
}

// CalculateInDegrees returns the number of referenced tables of each table.
func (g *Graph) CalculateInDegrees() map[string]int {
	inDegree := make(map[string]int, len(g.Nodes))
	for name := range g.Nodes {
		inDegree[name] = 0
	}
	for _, children := range g.Children {
		for _, child := range children {
			inDegree[child]++
		}
	}
	return inDegree
}

// sortedChildren returns the children of node in name order.
func (g *Graph) sortedChildren(node string) []string {
	children := append([]string(nil), g.Children[node]...)
	sort.Strings(children)
	return children
}

// kahn places every table it can and returns them in order.
func (g *Graph) kahn() []string {
	inDegree := g.CalculateInDegrees()
	queue := g.InitializeQueue(inDegree)

	var order []string
	for !queue.IsEmpty() {
		node, _ := queue.Dequeue()
		order = append(order, node)
		for _, child := range g.sortedChildren(node) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.Enqueue(child)
			}
		}
	}
	return order
}

// ErrCycleDetected is matched by every CycleError.
var ErrCycleDetected = errors.New("cycle detected in dependency graph")

// CycleInfo describes the tables a topological sort could not place.
type CycleInfo struct {
	TotalNodes        int
	ProcessedNodes    int
	UnprocessedNodes  []string // in the cycle or blocked by it
	CycleParticipants []string // subset of UnprocessedNodes on a cycle
	CyclePath         []string // e.g. [A, B, C, A]
}

// CycleError reports tables whose foreign keys form a cycle. A dump of such
// tables only loads with foreign key checks disabled.
type CycleError struct {
	Info *CycleInfo
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("cycle detected in dependency graph: %d of %d tables could not be ordered",
		len(e.Info.UnprocessedNodes), e.Info.TotalNodes)

	if len(e.Info.CyclePath) > 0 {
		msg += fmt.Sprintf("\nCycle path: %s", strings.Join(e.Info.CyclePath, " -> "))
	}
	if len(e.Info.CycleParticipants) > 0 {
		msg += fmt.Sprintf("\nTables in cycle: %s", strings.Join(e.Info.CycleParticipants, ", "))
	}

	if len(e.Info.UnprocessedNodes) > len(e.Info.CycleParticipants) {
		participants := make(map[string]bool)
		for _, p := range e.Info.CycleParticipants {
			participants[p] = true
		}
		var blocked []string
		for _, u := range e.Info.UnprocessedNodes {
			if !participants[u] {
				blocked = append(blocked, u)
			}
		}
		if len(blocked) > 0 {
			msg += fmt.Sprintf("\nTables blocked by cycle: %s", strings.Join(blocked, ", "))
		}
	}
	return msg
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// DetectIncompleteProcessing returns nil when every table can be ordered,
// and the tables left over otherwise.
func (g *Graph) DetectIncompleteProcessing() *CycleInfo {
	order := g.kahn()
	if len(order) == len(g.Nodes) {
		return nil
	}

	processed := make(map[string]bool, len(order))
	for _, n := range order {
		processed[n] = true
	}
	unprocessedSet := make(map[string]bool)
	var unprocessed []string
	for _, name := range g.AllNodes() {
		if !processed[name] {
			unprocessed = append(unprocessed, name)
			unprocessedSet[name] = true
		}
	}

	var participants []string
	for _, node := range unprocessed {
		if g.canReachSelf(node, unprocessedSet) {
			participants = append(participants, node)
		}
	}

	var path []string
	if len(participants) > 0 {
		path = g.FindCyclePath(participants[0], unprocessedSet)
	}

	return &CycleInfo{
		TotalNodes:        len(g.Nodes),
		ProcessedNodes:    len(order),
		UnprocessedNodes:  unprocessed,
		CycleParticipants: participants,
		CyclePath:         path,
	}
}

func (g *Graph) HasCycle() bool {
	return g.DetectIncompleteProcessing() != nil
}

// FindCyclePath returns a cycle through start within allowedNodes, with
// start at both ends, or nil.
func (g *Graph) FindCyclePath(start string, allowedNodes map[string]bool) []string {
	visited := make(map[string]bool)
	path := []string{start}
	if g.dfsFindPath(start, start, visited, allowedNodes, &path) {
		return path
	}
	return nil
}

func (g *Graph) dfsFindPath(current, target string, visited, allowedNodes map[string]bool, path *[]string) bool {
	for _, child := range g.sortedChildren(current) {
		if !allowedNodes[child] {
			continue
		}
		if child == target {
			*path = append(*path, target)
			return true
		}
		if visited[child] {
			continue
		}
		visited[child] = true
		*path = append(*path, child)
		if g.dfsFindPath(child, target, visited, allowedNodes, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
	}
	return false
}

func (g *Graph) canReachSelf(start string, allowedNodes map[string]bool) bool {
	visited := make(map[string]bool)
	return g.dfsCanReach(start, start, visited, allowedNodes, true)
}

// isStart keeps the first call from matching the target immediately.
func (g *Graph) dfsCanReach(current, target string, visited, allowedNodes map[string]bool, isStart bool) bool {
	if current == target && !isStart {
		return true
	}
	if visited[current] || !allowedNodes[current] {
		return false
	}
	visited[current] = true
	for _, child := range g.Children[current] {
		if g.dfsCanReach(child, target, visited, allowedNodes, false) {
			return true
		}
	}
	return false
}

// InsertOrder returns the tables with every referenced table before the
// tables referencing it. Ties are broken by name.
func (g *Graph) InsertOrder() ([]string, error) {
	order := g.kahn()
	if len(order) != len(g.Nodes) {
		return nil, &CycleError{Info: g.DetectIncompleteProcessing()}
	}
	return order, nil
}

// PartialOrder is InsertOrder that does not fail on cycles: the tables that
// can be ordered come first, followed by the rest in name order.
func (g *Graph) PartialOrder() ([]string, *CycleInfo) {
	order := g.kahn()
	if len(order) == len(g.Nodes) {
		return order, nil
	}
	info := g.DetectIncompleteProcessing()
	return append(order, info.UnprocessedNodes...), info
}

// Validate returns a CycleError when the tables cannot be ordered.
func (g *Graph) Validate() error {
	if info := g.DetectIncompleteProcessing(); info != nil {
		return &CycleError{Info: info}
	}
	return nil
}
