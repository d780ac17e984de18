// Command gmunode runs a small in-process GMU cluster: a handful of
// Nodes sharing one transport bus and cluster snapshot, driving a
// short sequence of update/view transactions against it. It plays the
// same role the teacher's cmd/driver/main.go plays for tiny_txn: a
// runnable demonstration, not a service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	jujuerrors "github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cloudtm/gmu/internal/cluster"
	"github.com/cloudtm/gmu/internal/gmu"
	"github.com/cloudtm/gmu/internal/metrics"
	"github.com/cloudtm/gmu/internal/node"
	"github.com/cloudtm/gmu/internal/transport"
)

func main() {
	logger, err := metrics.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := &cluster.Config{
		SelfID: "node-0",
		Nodes: []cluster.NodeConfig{
			{ID: "node-0", Address: "127.0.0.1:9000"},
			{ID: "node-1", Address: "127.0.0.1:9001"},
			{ID: "node-2", Address: "127.0.0.1:9002"},
		},
		ReplicationFactor: 2,
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid cluster config", zap.Error(err))
	}

	snapshot := cfg.Snapshot(1)
	ring := cfg.NewRing()
	bus := transport.NewBus()

	nodes := make(map[string]*node.Node, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		nodes[nc.ID] = node.New(nc.ID, snapshot, ring, bus, metrics.New(), logger.Named(nc.ID))
	}
	defer func() {
		for _, n := range nodes {
			n.Stop()
		}
	}()

	if err := runDemo(context.Background(), nodes, ring, logger); err != nil {
		logger.Fatal("demo run failed", zap.Error(err))
	}
}

// runDemo writes a value for the key on the first of its write owners,
// reads the key back on every node, then runs two concurrent
// writers against the same key the way the teacher's driver exercises
// a read-write conflict.
func runDemo(ctx context.Context, nodes map[string]*node.Node, ring *cluster.Ring, logger *zap.Logger) error {
	key := []byte("HDD")

	owners, err := ring.WriteOwners(key)
	if err != nil {
		return jujuerrors.Annotate(err, "resolve write owners")
	}
	owner := nodes[owners[0]]

	if err := owner.Update(ctx, "tx-seed", func(tx *gmu.Transaction) error {
		return tx.Put(ctx, key, []byte("Hard disk"))
	}); err != nil {
		return jujuerrors.Annotate(err, "seed write")
	}

	for id, n := range nodes {
		err := n.View(ctx, "tx-read-"+id, func(tx *gmu.Transaction) error {
			value, ok, err := tx.Get(ctx, key)
			if err != nil {
				return err
			}
			logger.Info("read", zap.String("node", id), zap.Bool("found", ok), zap.ByteString("value", value))
			return nil
		})
		if err != nil {
			return jujuerrors.Annotatef(err, "read from %s", id)
		}
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- owner.Update(ctx, "tx-conflict-a", func(tx *gmu.Transaction) error {
			if _, _, err := tx.Get(ctx, key); err != nil {
				return err
			}
			time.Sleep(15 * time.Millisecond)
			return tx.Put(ctx, key, []byte("Hard disk drive (A)"))
		})
	}()
	go func() {
		defer wg.Done()
		results <- owner.Update(ctx, "tx-conflict-b", func(tx *gmu.Transaction) error {
			if _, _, err := tx.Get(ctx, key); err != nil {
				return err
			}
			return tx.Put(ctx, key, []byte("Hard disk drive (B)"))
		})
	}()
	wg.Wait()
	close(results)
	for err := range results {
		if err == nil {
			continue
		}
		if !errors.Is(jujuerrors.Cause(err), gmu.ErrReadWriteConflict) {
			return jujuerrors.Annotate(err, "conflict demo")
		}
		logger.Info("transaction aborted as expected", zap.Error(err))
	}

	if err := owner.DumpCommitLog(os.Stdout); err != nil {
		return jujuerrors.Annotate(err, "dump commit log")
	}
	return nil
}
