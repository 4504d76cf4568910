package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexhholmes/rbstm/logger"
	"github.com/alexhholmes/rbstm/stm"
)

var errInsufficientFunds = errors.New("insufficient funds")

func newBankCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Run concurrent transfers between accounts and audit the total",
		RunE:  bankCommandFunc,
	}
	cmd.Flags().Int("accounts", 32, "number of accounts")
	cmd.Flags().Int("workers", 8, "number of transferring goroutines")
	cmd.Flags().Int("transfers", 10_000, "transfers per worker")
	cmd.Flags().Int("balance", 1_000, "starting balance per account")
	cmd.Flags().Int("validate-every", 32, "effect steps between journal validations, 0 to disable")
	cmd.Flags().Int("hot", 5, "number of most conflicted accounts to report")
	return cmd
}

func bankCommandFunc(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	flags := cmd.Flags()
	accounts, _ := flags.GetInt("accounts")
	workers, _ := flags.GetInt("workers")
	transfers, _ := flags.GetInt("transfers")
	balance, _ := flags.GetInt("balance")
	validateEvery, _ := flags.GetInt("validate-every")
	hot, _ := flags.GetInt("hot")
	if accounts < 2 {
		return fmt.Errorf("need at least 2 accounts, got %d", accounts)
	}

	rt, err := stm.New(
		stm.WithLogger(logger.NewZap(log)),
		stm.WithRegisterer(prometheus.NewRegistry()),
		stm.WithValidateEvery(validateEvery),
	)
	if err != nil {
		return err
	}

	refs := make([]*stm.Ref[int], accounts)
	names := make(map[uint64]int, accounts)
	for i := range refs {
		refs[i] = stm.NewRef(balance)
		names[refs[i].ID()] = i
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	seed := seedFlag(cmd)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		rng := rand.New(rand.NewPCG(seed, uint64(w)))
		g.Go(func() error {
			for i := 0; i < transfers; i++ {
				from := rng.IntN(accounts)
				to := (from + 1 + rng.IntN(accounts-1)) % accounts
				amount := rng.IntN(balance/10 + 1)
				_, err := stm.AtomicallyWith(ctx, rt, transfer(refs[from], refs[to], amount))
				if err != nil && !errors.Is(err, errInsufficientFunds) {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	took := time.Since(start)

	total, err := stm.AtomicallyWith(context.Background(), rt, audit(refs))
	if err != nil {
		return err
	}
	if want := accounts * balance; total != want {
		return fmt.Errorf("audit: total %d, want %d", total, want)
	}

	stats := rt.Stats()
	log.Info("bank finished",
		zap.Duration("took", took),
		zap.Uint64("commits", stats.Commits),
		zap.Uint64("conflicts", stats.Conflicts),
	)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "total=%d commits=%d read_only=%d conflicts=%d\n",
		total, stats.Commits, stats.ReadOnly, stats.Conflicts)
	for _, h := range rt.HotRefs(hot) {
		fmt.Fprintf(out, "account=%d conflicts=%d\n", names[h.ID], h.Conflicts)
	}
	return nil
}

func transfer(from, to *stm.Ref[int], amount int) stm.STM[stm.Unit] {
	return stm.FlatMap(from.Get(), func(have int) stm.STM[stm.Unit] {
		if have < amount {
			return stm.Fail[stm.Unit](errInsufficientFunds)
		}
		return stm.Then(
			from.Set(have-amount),
			stm.Update[int](to, func(n int) int { return n + amount }),
		)
	})
}

func audit(refs []*stm.Ref[int]) stm.STM[int] {
	return stm.Map(stm.ForEach(refs, (*stm.Ref[int]).Get), func(balances []int) int {
		total := 0
		for _, b := range balances {
			total += b
		}
		return total
	})
}
