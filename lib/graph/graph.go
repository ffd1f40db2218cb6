// Package graph is the in-memory mirror of the relational store: a
// directed multigraph keyed by stable handles (removing a node never
// invalidates another node's handle), with secondary indexes by content
// hash and by database id, BFS shortest-path, and undirected
// connected-component traversal. There is no library in this module's
// lineage offering stable handles across deletions, so the graph is a
// slab of slots with a free list and tombstones, the approach called out
// for languages without arena/generational-index support.
package graph

import "container/list"

// Handle identifies a node. It stays valid across removal of other
// nodes; it becomes invalid only after the node it names is itself
// removed. The slot may then be reused, but under a new generation, so the
// old handle never resolves again.
type Handle uint64

// Node is the payload the graph caches for each ROM. It mirrors a subset
// of the repository row: enough to answer listing and lookup questions
// without a round trip to the database.
type Node struct {
	DBID     int64
	SHA256   [32]byte
	Filename string
	Title    string
	Version  string
	RomType  string
}

// Edge is the payload the graph caches for each diff.
type Edge struct {
	DBID     int64
	DiffPath string
	DiffSize int64
}

// Step is one hop in a path returned by FindShortestPath. Edge is nil for
// the source node (the first step); every subsequent step carries the
// edge used to reach it.
type Step struct {
	Handle Handle
	Edge   *Edge
}

type slot struct {
	node Node
	// out and in hold, in edge-insertion order, the neighboring handle and
	// the edge payload connecting to it.
	out []neighbor
	in  []neighbor
	// occupied is false for removed or never-used slots; a false slot is
	// always on the free list.
	occupied bool
}

type neighbor struct {
	handle Handle
	edge   Edge
}

// Graph is a directed multigraph of Nodes connected by Edges.
type Graph struct {
	slots  []slot
	free   []uint64
	byHash map[[32]byte]Handle
	byDBID map[int64]Handle
	// gens counts, per slot index, how many times that slot has been
	// reused. It's what makes a Handle from a removed node reliably
	// invalid rather than silently aliasing whatever gets allocated into
	// its slot next.
	gens map[uint64]uint64
}

// slotShift packs a generation counter into the high bits of a Handle so
// a stale handle from before a slot was reused can't alias a live node.
// 32 bits of index leaves headroom far beyond any realistic collection.
const slotShift = 32

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		byHash: make(map[[32]byte]Handle),
		byDBID: make(map[int64]Handle),
	}
}

func makeHandle(index uint64, generation uint64) Handle {
	return Handle(generation<<slotShift | index)
}

func splitHandle(h Handle) (index uint64, generation uint64) {
	return uint64(h) & 0xFFFFFFFF, uint64(h) >> slotShift
}

// AddNode inserts node into the graph and indexes it by hash and db id,
// returning its stable handle.
func (g *Graph) AddNode(node Node) Handle {
	var idx uint64
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
		g.slots[idx] = slot{node: node, occupied: true}
	} else {
		idx = uint64(len(g.slots))
		g.slots = append(g.slots, slot{node: node, occupied: true})
	}

	h := makeHandle(idx, g.generationFor(idx))
	g.byHash[node.SHA256] = h
	g.byDBID[node.DBID] = h
	return h
}

// generationFor returns the current generation stamped on handles minted
// for slot idx. A never-reused slot is generation 0; RemoveNode bumps it
// on release.
func (g *Graph) generationFor(idx uint64) uint64 {
	if g.gens == nil {
		g.gens = make(map[uint64]uint64)
	}
	return g.gens[idx]
}

// AddEdge records a directed edge from src to tgt, appending it to both
// endpoints' adjacency lists in insertion order.
func (g *Graph) AddEdge(src, tgt Handle, edge Edge) {
	si, ok := g.resolve(src)
	if !ok {
		return
	}
	ti, ok := g.resolve(tgt)
	if !ok {
		return
	}
	g.slots[si].out = append(g.slots[si].out, neighbor{handle: tgt, edge: edge})
	g.slots[ti].in = append(g.slots[ti].in, neighbor{handle: src, edge: edge})
}

// resolve validates a handle against the slot's current generation and
// returns its slot index.
func (g *Graph) resolve(h Handle) (uint64, bool) {
	idx, gen := splitHandle(h)
	if idx >= uint64(len(g.slots)) {
		return 0, false
	}
	s := &g.slots[idx]
	if !s.occupied || g.generationFor(idx) != gen {
		return 0, false
	}
	return idx, true
}

// GetNode returns the node payload for h, if h is still valid.
func (g *Graph) GetNode(h Handle) (Node, bool) {
	idx, ok := g.resolve(h)
	if !ok {
		return Node{}, false
	}
	return g.slots[idx].node, true
}

// GetNodeByHash looks up a node's handle by content hash.
func (g *Graph) GetNodeByHash(sha256 [32]byte) (Handle, bool) {
	h, ok := g.byHash[sha256]
	return h, ok
}

// GetNodeByDBID looks up a node's handle by repository row id.
func (g *Graph) GetNodeByDBID(dbID int64) (Handle, bool) {
	h, ok := g.byDBID[dbID]
	return h, ok
}

// UpdateNode replaces the cached payload for h in place, preserving its
// handle and adjacency. Used to mirror metadata edits from the repository.
func (g *Graph) UpdateNode(h Handle, node Node) bool {
	idx, ok := g.resolve(h)
	if !ok {
		return false
	}
	// hash is immutable; db id likewise. Only the caller-visible fields move.
	node.SHA256 = g.slots[idx].node.SHA256
	node.DBID = g.slots[idx].node.DBID
	g.slots[idx].node = node
	return true
}

// RemoveNode deletes a node and every edge incident to it (in either
// direction), purging both indexes. Other nodes' handles remain valid.
func (g *Graph) RemoveNode(h Handle) bool {
	idx, ok := g.resolve(h)
	if !ok {
		return false
	}
	removed := g.slots[idx].node

	for _, nb := range g.slots[idx].out {
		g.pruneNeighbor(nb.handle, h, false)
	}
	for _, nb := range g.slots[idx].in {
		g.pruneNeighbor(nb.handle, h, true)
	}

	delete(g.byHash, removed.SHA256)
	delete(g.byDBID, removed.DBID)

	g.slots[idx] = slot{}
	if g.gens == nil {
		g.gens = make(map[uint64]uint64)
	}
	g.gens[idx]++
	g.free = append(g.free, idx)
	return true
}

// pruneNeighbor removes any adjacency entries pointing at `removed` from
// the side of `other` opposite to `wasIncoming` (i.e. if other was in
// removed's incoming list, other reached removed via its outgoing list and
// the entry is stripped from other's outgoing list; otherwise it is
// stripped from other's incoming list).
func (g *Graph) pruneNeighbor(other, removed Handle, wasIncoming bool) {
	idx, ok := g.resolve(other)
	if !ok {
		return
	}
	filter := func(ns []neighbor) []neighbor {
		out := ns[:0]
		for _, n := range ns {
			if n.handle != removed {
				out = append(out, n)
			}
		}
		return out
	}
	if wasIncoming {
		g.slots[idx].out = filter(g.slots[idx].out)
	} else {
		g.slots[idx].in = filter(g.slots[idx].in)
	}
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	return len(g.byDBID)
}

// EdgeCount returns the number of live directed edges.
func (g *Graph) EdgeCount() int {
	total := 0
	for i := range g.slots {
		if g.slots[i].occupied {
			total += len(g.slots[i].out)
		}
	}
	return total
}

// IterNodes returns every live node together with its handle, in slot
// order (which is insertion order modulo slot reuse).
func (g *Graph) IterNodes() []struct {
	Handle Handle
	Node   Node
} {
	var out []struct {
		Handle Handle
		Node   Node
	}
	for idx := range g.slots {
		s := &g.slots[idx]
		if !s.occupied {
			continue
		}
		out = append(out, struct {
			Handle Handle
			Node   Node
		}{makeHandle(uint64(idx), g.generationFor(uint64(idx))), s.node})
	}
	return out
}

// Neighbors returns the outgoing neighbors of h with the edge used to
// reach each.
func (g *Graph) Neighbors(h Handle) []struct {
	Node Node
	Edge Edge
} {
	idx, ok := g.resolve(h)
	if !ok {
		return nil
	}
	var out []struct {
		Node Node
		Edge Edge
	}
	for _, nb := range g.slots[idx].out {
		ni, ok := g.resolve(nb.handle)
		if !ok {
			continue
		}
		out = append(out, struct {
			Node Node
			Edge Edge
		}{g.slots[ni].node, nb.edge})
	}
	return out
}

// OutgoingEdgeCount returns the number of outgoing edges from h.
func (g *Graph) OutgoingEdgeCount(h Handle) int {
	idx, ok := g.resolve(h)
	if !ok {
		return 0
	}
	return len(g.slots[idx].out)
}

// FindShortestPath runs BFS over outgoing edges from src to tgt, breaking
// ties by edge-insertion order. If src == tgt, the single-node path is
// returned. Returns (nil, false) if tgt is unreachable.
func (g *Graph) FindShortestPath(src, tgt Handle) ([]Step, bool) {
	if _, ok := g.resolve(src); !ok {
		return nil, false
	}
	if _, ok := g.resolve(tgt); !ok {
		return nil, false
	}
	if src == tgt {
		return []Step{{Handle: src}}, true
	}

	visited := map[Handle]arrival{src: {}}
	queue := list.New()
	queue.PushBack(src)

	for queue.Len() > 0 {
		front := queue.Remove(queue.Front()).(Handle)
		idx, _ := g.resolve(front)
		for _, nb := range g.slots[idx].out {
			if _, seen := visited[nb.handle]; seen {
				continue
			}
			visited[nb.handle] = arrival{prev: front, edge: nb.edge}
			if nb.handle == tgt {
				return reconstructPath(src, tgt, visited), true
			}
			queue.PushBack(nb.handle)
		}
	}
	return nil, false
}

// arrival records, for a node discovered by FindShortestPath, the node it
// was reached from and the edge used to reach it.
type arrival struct {
	prev Handle
	edge Edge
}

func reconstructPath(src, tgt Handle, visited map[Handle]arrival) []Step {
	var reversed []Step
	cur := tgt
	for cur != src {
		a := visited[cur]
		edge := a.edge
		reversed = append(reversed, Step{Handle: cur, Edge: &edge})
		cur = a.prev
	}
	reversed = append(reversed, Step{Handle: src})

	path := make([]Step, len(reversed))
	for i, s := range reversed {
		path[len(reversed)-1-i] = s
	}
	return path
}

// ConnectedComponent returns every handle reachable from start by
// treating edges as undirected (outgoing union incoming). This is the
// unit of export.
func (g *Graph) ConnectedComponent(start Handle) []Handle {
	if _, ok := g.resolve(start); !ok {
		return nil
	}
	visited := map[Handle]bool{start: true}
	queue := list.New()
	queue.PushBack(start)
	var order []Handle

	for queue.Len() > 0 {
		cur := queue.Remove(queue.Front()).(Handle)
		order = append(order, cur)
		idx, _ := g.resolve(cur)
		for _, nb := range g.slots[idx].out {
			if !visited[nb.handle] {
				visited[nb.handle] = true
				queue.PushBack(nb.handle)
			}
		}
		for _, nb := range g.slots[idx].in {
			if !visited[nb.handle] {
				visited[nb.handle] = true
				queue.PushBack(nb.handle)
			}
		}
	}
	return order
}
