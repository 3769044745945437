package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Single-byte prefixes keep keys compact.
const (
	prefixNode = byte(0x01) // 0x01 + nodeID -> JSON(Node)
	prefixEdge = byte(0x02) // 0x02 + edgeID -> JSON(Edge)
)

// BadgerStore is a persistent Store backed by BadgerDB.
//
// The full graph is held in an in-memory index for reads and pattern
// evaluation; every mutation is written through to disk before it becomes
// visible. On open, the store replays all persisted nodes and edges into
// the index, so restarts recover the complete graph including derived
// facts.
//
// Key structure:
//   - Nodes: 0x01 + nodeID -> JSON(Node)
//   - Edges: 0x02 + edgeID -> JSON(Edge)
//
// Example:
//
//	store, err := graph.NewBadgerStore(graph.BadgerOptions{DataDir: "./data/huginn"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
type BadgerStore struct {
	db  *badger.DB
	mem *MemoryStore
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// DataDir is the directory for data files. Required unless InMemory.
	DataDir string

	// InMemory runs BadgerDB without touching disk. Useful for testing.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool

	// Logger for BadgerDB internal logging. Nil silences it.
	Logger badger.Logger
}

// NewBadgerStore opens (or creates) a persistent store at opts.DataDir and
// loads the existing graph into memory.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if opts.DataDir == "" && !opts.InMemory {
		return nil, fmt.Errorf("%w: data directory is required", ErrInvalidData)
	}

	badgerOpts := badger.DefaultOptions(opts.DataDir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", opts.DataDir, err)
	}

	store := &BadgerStore{db: db, mem: NewMemoryStore()}
	if err := store.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load graph: %w", err)
	}
	return store, nil
}

// load replays persisted nodes and edges into the memory index.
func (b *BadgerStore) load() error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		// Nodes first so edge endpoint checks pass.
		for it.Seek([]byte{prefixNode}); it.ValidForPrefix([]byte{prefixNode}); it.Next() {
			var node Node
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &node)
			}); err != nil {
				return fmt.Errorf("decode node %q: %w", it.Item().Key(), err)
			}
			b.mem.createNodeLocked(&node)
		}
		for it.Seek([]byte{prefixEdge}); it.ValidForPrefix([]byte{prefixEdge}); it.Next() {
			var edge Edge
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			}); err != nil {
				return fmt.Errorf("decode edge %q: %w", it.Item().Key(), err)
			}
			b.mem.createEdgeLocked(&edge)
		}
		return nil
	})
}

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

func (b *BadgerStore) putNode(node *Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode node %s: %w", node.ID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(node.ID), data)
	})
}

func (b *BadgerStore) putEdge(edge *Edge) error {
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("encode edge %s: %w", edge.ID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(edgeKey(edge.ID), data)
	})
}

// CreateNode stores a new node in memory and on disk.
func (b *BadgerStore) CreateNode(ctx context.Context, node *Node) error {
	if err := b.mem.CreateNode(ctx, node); err != nil {
		return err
	}
	stored, err := b.mem.GetNode(ctx, node.ID)
	if err != nil {
		return err
	}
	return b.putNode(stored)
}

// GetNode returns a copy of the node with the given id.
func (b *BadgerStore) GetNode(ctx context.Context, id NodeID) (*Node, error) {
	return b.mem.GetNode(ctx, id)
}

// CreateEdge stores a new edge in memory and on disk.
func (b *BadgerStore) CreateEdge(ctx context.Context, edge *Edge) error {
	if err := b.mem.CreateEdge(ctx, edge); err != nil {
		return err
	}
	stored, err := b.mem.GetEdge(ctx, edge.ID)
	if err != nil {
		return err
	}
	return b.putEdge(stored)
}

// GetEdge returns a copy of the edge with the given id.
func (b *BadgerStore) GetEdge(ctx context.Context, id EdgeID) (*Edge, error) {
	return b.mem.GetEdge(ctx, id)
}

// Read runs fn against a consistent in-memory snapshot.
func (b *BadgerStore) Read(ctx context.Context, fn func(View) error) error {
	return b.mem.Read(ctx, fn)
}

// MergeNode matches or creates a node and persists any new node.
func (b *BadgerStore) MergeNode(ctx context.Context, labels []string, key, set map[string]any) (*Node, bool, error) {
	node, created, err := b.mem.MergeNode(ctx, labels, key, set)
	if err != nil {
		return nil, false, err
	}
	if created {
		if err := b.putNode(node); err != nil {
			return nil, false, err
		}
	}
	return node, created, nil
}

// MergeEdge matches or creates an edge and persists any new edge.
func (b *BadgerStore) MergeEdge(ctx context.Context, edgeType string, from, to NodeID, key, set map[string]any) (*Edge, bool, error) {
	edge, created, err := b.mem.MergeEdge(ctx, edgeType, from, to, key, set)
	if err != nil {
		return nil, false, err
	}
	if created {
		if err := b.putEdge(edge); err != nil {
			return nil, false, err
		}
	}
	return edge, created, nil
}

// DeleteWhere removes matching elements from memory and disk.
func (b *BadgerStore) DeleteWhere(ctx context.Context, nodeWhere func(*Node) bool, edgeWhere func(*Edge) bool) (int, error) {
	// Collect doomed keys before mutating so the disk delete matches the
	// in-memory delete exactly (including detached edges).
	var nodeKeys, edgeKeys [][]byte
	err := b.mem.Read(ctx, func(v View) error {
		doomed := make(map[NodeID]struct{})
		if nodeWhere != nil {
			for _, n := range v.AllNodes() {
				if nodeWhere(n) {
					doomed[n.ID] = struct{}{}
					nodeKeys = append(nodeKeys, nodeKey(n.ID))
				}
			}
		}
		for _, e := range v.AllEdges() {
			_, fromDoomed := doomed[e.From]
			_, toDoomed := doomed[e.To]
			if fromDoomed || toDoomed || (edgeWhere != nil && edgeWhere(e)) {
				edgeKeys = append(edgeKeys, edgeKey(e.ID))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed, err := b.mem.DeleteWhere(ctx, nodeWhere, edgeWhere)
	if err != nil {
		return removed, err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		for _, k := range edgeKeys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for _, k := range nodeKeys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return removed, err
}

// NodeCount returns the number of nodes.
func (b *BadgerStore) NodeCount(ctx context.Context) (int64, error) {
	return b.mem.NodeCount(ctx)
}

// EdgeCount returns the number of edges.
func (b *BadgerStore) EdgeCount(ctx context.Context) (int64, error) {
	return b.mem.EdgeCount(ctx)
}

// Close releases the database. Further operations return ErrStoreClosed.
func (b *BadgerStore) Close() error {
	if err := b.mem.Close(); err != nil {
		return err
	}
	return b.db.Close()
}
