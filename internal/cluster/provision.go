package cluster

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Node is one instance of a cluster to provision, e.g. the master or a slave.
type Node struct {
	Role  string
	Index int
}

// Nodes lists the master followed by n slaves.
func Nodes(masterRole, slaveRole string, slaves int) []Node {
	nodes := []Node{{Role: masterRole}}
	for i := 0; i < slaves; i++ {
		nodes = append(nodes, Node{Role: slaveRole, Index: i})
	}
	return nodes
}

// ProvisionAll provisions every node concurrently. Nodes share no state; the
// first failure cancels the context passed to the others. The returned IDs
// follow the order of nodes.
func ProvisionAll(ctx context.Context, nodes []Node, provision func(context.Context, Node) (string, error)) ([]string, error) {
	ids := make([]string, len(nodes))
	g, ctx := errgroup.WithContext(ctx)
	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			id, err := provision(ctx, node)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ids, err
	}
	return ids, nil
}
