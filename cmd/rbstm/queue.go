package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexhholmes/rbstm/logger"
	"github.com/alexhholmes/rbstm/sorted"
	"github.com/alexhholmes/rbstm/stm"
)

func newQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Run producers and blocking consumers over a transactional priority queue",
		RunE:  queueCommandFunc,
	}
	cmd.Flags().Int("producers", 4, "number of producing goroutines")
	cmd.Flags().Int("consumers", 4, "number of consuming goroutines")
	cmd.Flags().Int("items", 1_000, "items per producer")
	cmd.Flags().Duration("timeout", time.Minute, "give up after this long")
	return cmd
}

type job struct {
	producer int
	seq      int
}

func queueCommandFunc(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	flags := cmd.Flags()
	producers, _ := flags.GetInt("producers")
	consumers, _ := flags.GetInt("consumers")
	items, _ := flags.GetInt("items")
	timeout, _ := flags.GetDuration("timeout")
	if consumers < 1 {
		return fmt.Errorf("need at least 1 consumer, got %d", consumers)
	}

	rt, err := stm.New(stm.WithLogger(logger.NewZap(log)))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	total := producers * items
	queue := sorted.NewTMap[job, int](func(a, b job) int {
		if a.seq != b.seq {
			return a.seq - b.seq
		}
		return a.producer - b.producer
	})
	taken := stm.NewRef(0)
	// take pops the lowest job, or reports false once every job is taken.
	take := stm.FlatMap(taken.Get(), func(n int) stm.STM[bool] {
		if n == total {
			return stm.Succeed(false)
		}
		return stm.Then(queue.PopMin(), stm.As(taken.Set(n+1), true))
	})

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			for i := 0; i < items; i++ {
				if _, err := stm.AtomicallyWith(ctx, rt, queue.Put(job{producer: p, seq: i}, i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	consumed := make([]int, consumers)
	for c := 0; c < consumers; c++ {
		g.Go(func() error {
			for {
				ok, err := stm.AtomicallyWith(ctx, rt, take)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				consumed[c]++
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats := rt.Stats()
	log.Info("queue drained",
		zap.Int("items", total),
		zap.Duration("took", time.Since(start)),
		zap.Uint64("suspensions", stats.Suspensions),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "items=%d consumed=%v suspensions=%d\n", total, consumed, stats.Suspensions)
	return nil
}
