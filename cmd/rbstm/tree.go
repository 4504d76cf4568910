package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexhholmes/rbstm/rbtree"
)

func newTreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Insert, query and remove random keys, checking invariants",
		RunE:  treeCommandFunc,
	}
	cmd.Flags().Int("keys", 100_000, "number of keys to insert")
	cmd.Flags().Bool("check", true, "verify tree invariants after each phase")
	return cmd
}

func treeCommandFunc(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	n, _ := cmd.Flags().GetInt("keys")
	check, _ := cmd.Flags().GetBool("check")
	rng := rand.New(rand.NewPCG(seedFlag(cmd), 0))
	keys := rng.Perm(n)

	verify := func(phase string, tree *rbtree.Tree[int, int]) error {
		if !check {
			return nil
		}
		if err := tree.Check(); err != nil {
			return fmt.Errorf("%s: %w", phase, err)
		}
		return nil
	}

	start := time.Now()
	persistent := rbtree.NewOrdered[int, int]()
	for _, k := range keys {
		persistent = persistent.Insert(k, k)
	}
	log.Info("persistent insert", zap.Int("keys", n), zap.Duration("took", time.Since(start)))
	if err := verify("persistent insert", persistent); err != nil {
		return err
	}

	start = time.Now()
	b := rbtree.NewOrdered[int, int]().BeginMutation()
	for _, k := range keys {
		if err := b.Insert(k, k); err != nil {
			return err
		}
	}
	built, err := b.EndMutation()
	if err != nil {
		return err
	}
	log.Info("builder insert", zap.Int("keys", n), zap.Duration("took", time.Since(start)))
	if err := verify("builder insert", built); err != nil {
		return err
	}

	start = time.Now()
	misses := 0
	for _, k := range keys {
		if _, ok := built.FindFirst(k); !ok {
			misses++
		}
	}
	log.Info("lookup", zap.Int("misses", misses), zap.Duration("took", time.Since(start)))
	if misses > 0 {
		return fmt.Errorf("lookup: %d keys missing", misses)
	}

	start = time.Now()
	remaining := persistent
	for _, k := range keys[:n/2] {
		remaining = remaining.RemoveFirst(k)
	}
	log.Info("remove", zap.Int("removed", n/2), zap.Duration("took", time.Since(start)))
	if err := verify("remove", remaining); err != nil {
		return err
	}

	median, _ := remaining.GetAt(remaining.Size() / 2)
	fmt.Fprintf(cmd.OutOrStdout(), "keys=%d remaining=%d median=%d original=%d\n",
		n, remaining.Size(), median.Key, persistent.Size())
	return nil
}
