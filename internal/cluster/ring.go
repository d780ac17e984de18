package cluster

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// virtualNodesPerNode mirrors the 150-virtual-node default the hash-ring
// config in froz-husain-PairDB's coordinator ships with.
const virtualNodesPerNode = 150

// Ring is a consistent-hash ring with virtual nodes over a static set of
// physical NodeIDs. It is the concrete Distribution this module wires
// into the core's gmu.Distribution interface (§4.G).
type Ring struct {
	mu        sync.RWMutex
	positions []uint64
	owner     map[uint64]string
	vnodes    map[string][]uint64
	replicas  int
}

// NewRing builds an empty ring that places replicas copies of each key
// on distinct physical nodes.
func NewRing(replicas int) *Ring {
	if replicas < 1 {
		replicas = 1
	}
	return &Ring{
		owner:    make(map[uint64]string),
		vnodes:   make(map[string][]uint64),
		replicas: replicas,
	}
}

// AddNode inserts nodeID's virtual nodes into the ring.
func (r *Ring) AddNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.vnodes[nodeID]; exists {
		return
	}

	positions := make([]uint64, 0, virtualNodesPerNode)
	for i := 0; i < virtualNodesPerNode; i++ {
		pos := hashKey(fmt.Sprintf("%s-vnode-%d", nodeID, i))
		r.positions = append(r.positions, pos)
		r.owner[pos] = nodeID
		positions = append(positions, pos)
	}
	r.vnodes[nodeID] = positions
	sort.Slice(r.positions, func(i, j int) bool { return r.positions[i] < r.positions[j] })
}

// RemoveNode evicts nodeID's virtual nodes from the ring.
func (r *Ring) RemoveNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	positions, ok := r.vnodes[nodeID]
	if !ok {
		return
	}
	delete(r.vnodes, nodeID)
	remove := make(map[uint64]struct{}, len(positions))
	for _, p := range positions {
		delete(r.owner, p)
		remove[p] = struct{}{}
	}
	kept := r.positions[:0]
	for _, p := range r.positions {
		if _, gone := remove[p]; !gone {
			kept = append(kept, p)
		}
	}
	r.positions = kept
}

// WriteOwners returns the distinct physical nodes responsible for key,
// walking the ring clockwise from hash(key) until replicas distinct
// owners are collected.
func (r *Ring) WriteOwners(key []byte) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.positions) == 0 {
		return nil, ErrEmptyRing
	}

	start := r.search(hashKey(string(key)))
	seen := make(map[string]struct{}, r.replicas)
	owners := make([]string, 0, r.replicas)
	for i := 0; i < len(r.positions) && len(owners) < r.replicas; i++ {
		pos := r.positions[(start+i)%len(r.positions)]
		node := r.owner[pos]
		if _, dup := seen[node]; dup {
			continue
		}
		seen[node] = struct{}{}
		owners = append(owners, node)
	}
	return owners, nil
}

// IsLocalOwner reports whether self is among key's write owners.
func (r *Ring) IsLocalOwner(key []byte, self string) (bool, error) {
	owners, err := r.WriteOwners(key)
	if err != nil {
		return false, err
	}
	for _, o := range owners {
		if o == self {
			return true, nil
		}
	}
	return false, nil
}

// search returns the index of the first ring position >= h, wrapping to
// 0 if h is past the last position.
func (r *Ring) search(h uint64) int {
	idx := sort.Search(len(r.positions), func(i int) bool { return r.positions[i] >= h })
	if idx == len(r.positions) {
		return 0
	}
	return idx
}

func hashKey(key string) uint64 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint64(sum[:8])
}
