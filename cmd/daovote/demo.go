package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/vocdoni/arbo/memdb"

	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/dao"
	"github.com/tocipoco/DAO-Vote/dashboard"
	"github.com/tocipoco/DAO-Vote/session"
	"github.com/tocipoco/DAO-Vote/storage"
	"github.com/tocipoco/DAO-Vote/types"
	"github.com/tocipoco/DAO-Vote/util"
)

const (
	flagVoters      = "voters"
	flagDescription = "description"
)

// demoClock is a ledger clock the demo moves past voting windows.
type demoClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *demoClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *demoClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func demoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "runs a confidential vote on an in memory ledger and prints the tally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			voters, err := cmd.Flags().GetInt(flagVoters)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %w", err)
			}
			description, err := cmd.Flags().GetString(flagDescription)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %w", err)
			}
			if voters < 1 {
				return fmt.Errorf("at least one voter is required")
			}
			return demo(cmd.Context(), cfg, voters, description)
		},
	}
	cmd.Flags().Int(flagVoters, 5, "number of DAO members voting")
	cmd.Flags().String(flagDescription, "fund the community treasury", "proposal description")
	return cmd
}

func demo(ctx context.Context, cfg *Config, voters int, description string) error {
	clock := &demoClock{now: time.Now()}
	stg := storage.New(memdb.New())
	defer stg.Close()

	cp, err := coprocessor.New(stg, coprocessor.Config{
		ChainID:      cfg.Chain.ID,
		MaxPlaintext: cfg.Chain.MaxPlaintext,
		Now:          clock.Now,
	})
	if err != nil {
		return err
	}
	engine, err := dao.New(stg, cp, dao.Config{Address: common.HexToAddress(cfg.Chain.Contract), Now: clock.Now})
	if err != nil {
		return err
	}
	ledger := chain.NewLocal(engine, cfg.Chain.ID)

	members := make([]*ethereum.SignKeys, voters)
	for i := range members {
		members[i] = ethereum.NewSignKeys()
		if err := members[i].Generate(); err != nil {
			return err
		}
	}
	ctrl, err := dashboard.New(ctx, dashboard.Config{
		Dialer:   ledger,
		Gateways: map[uint64]coprocessor.Gateway{cfg.Chain.ID: cp},
		ChainID:  cfg.Chain.ID,
		Signer:   members[0],
		Session:  session.Config{Now: clock.Now},
	})
	if err != nil {
		return err
	}

	for _, m := range members {
		if err := ctrl.SwitchAccount(ctx, m); err != nil {
			return err
		}
		if err := ctrl.Join(ctx); err != nil {
			return fmt.Errorf("%s cannot join: %w", m.AddressString(), err)
		}
	}
	if err := ctrl.SwitchAccount(ctx, members[0]); err != nil {
		return err
	}
	id, err := ctrl.CreateProposal(ctx, description, types.MinVotingDuration)
	if err != nil {
		return err
	}
	fmt.Printf("proposal %d created: %q\n", id, description)

	var yes, no int
	for _, m := range members {
		if err := ctrl.SwitchAccount(ctx, m); err != nil {
			return err
		}
		ballot := uint64(util.RandomInt(types.BallotNo, types.BallotYes+1))
		if _, err := ctrl.Vote(ctx, id, ballot); err != nil {
			return fmt.Errorf("%s cannot vote: %w", m.AddressString(), err)
		}
		if ballot == types.BallotYes {
			yes++
		} else {
			no++
		}
	}
	fmt.Printf("%d encrypted ballots cast (expected tally %d yes, %d no)\n", voters, yes, no)

	if err := ctrl.SwitchAccount(ctx, members[0]); err != nil {
		return err
	}
	tally, err := ctrl.Decrypt(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("decrypted tally: %d yes, %d no\n", tally.Yes, tally.No)

	clock.Advance(types.MinVotingDuration + time.Minute)
	tally, err = ctrl.Execute(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("proposal %d executed: %d yes, %d no\n", id, tally.Yes, tally.No)

	events, err := ctrl.Connection().Events(ctx, 0)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Printf("  #%d block %d %s\n", ev.Index, ev.BlockNumber, ev.Type)
	}
	return nil
}
