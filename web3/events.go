package web3

import (
	"context"
	"fmt"
	"math/big"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

type memberAddedLog struct {
	Member common.Address
}

type proposalCreatedLog struct {
	ProposalId  *big.Int
	Proposer    common.Address
	Description string
	StartTime   *big.Int
	EndTime     *big.Int
}

type voteCastLog struct {
	ProposalId *big.Int
	Voter      common.Address
}

type proposalExecutedLog struct {
	ProposalId *big.Int
	Result     bool
}

type voteResultsDecryptedLog struct {
	ProposalId *big.Int
	YesVotes   uint32
	NoVotes    uint32
	Result     bool
}

// unpackLog decodes both the data and the indexed topics of l into out.
func unpackLog(out any, event string, l *gethtypes.Log) error {
	ev, ok := DAOABI.Events[event]
	if !ok {
		return fmt.Errorf("unknown event %s", event)
	}
	if len(l.Data) > 0 {
		if err := DAOABI.UnpackIntoInterface(out, event, l.Data); err != nil {
			return err
		}
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return abi.ParseTopics(out, indexed, l.Topics[1:])
}

// decodeLog turns a contract log into an event. The event index is left for
// the caller to assign.
func decodeLog(l *gethtypes.Log) (*types.Event, error) {
	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("anonymous log")
	}
	abiEvent, err := DAOABI.EventByID(l.Topics[0])
	if err != nil {
		return nil, err
	}
	ev := &types.Event{
		Type:        types.EventType(abiEvent.Name),
		TxHash:      l.TxHash,
		BlockNumber: l.BlockNumber,
	}
	switch ev.Type {
	case types.EventMemberAdded:
		var out memberAddedLog
		if err := unpackLog(&out, abiEvent.Name, l); err != nil {
			return nil, err
		}
		ev.Account = out.Member
	case types.EventProposalCreated:
		var out proposalCreatedLog
		if err := unpackLog(&out, abiEvent.Name, l); err != nil {
			return nil, err
		}
		ev.ProposalID = out.ProposalId.Uint64()
		ev.Account = out.Proposer
		ev.Description = out.Description
		ev.StartTime = time.Unix(out.StartTime.Int64(), 0)
		ev.EndTime = time.Unix(out.EndTime.Int64(), 0)
	case types.EventVoteCast:
		var out voteCastLog
		if err := unpackLog(&out, abiEvent.Name, l); err != nil {
			return nil, err
		}
		ev.ProposalID = out.ProposalId.Uint64()
		ev.Account = out.Voter
	case types.EventProposalExecuted:
		var out proposalExecutedLog
		if err := unpackLog(&out, abiEvent.Name, l); err != nil {
			return nil, err
		}
		ev.ProposalID = out.ProposalId.Uint64()
		ev.Result = out.Result
	case types.EventVoteResultsDecrypted:
		var out voteResultsDecryptedLog
		if err := unpackLog(&out, abiEvent.Name, l); err != nil {
			return nil, err
		}
		ev.ProposalID = out.ProposalId.Uint64()
		ev.Yes = uint64(out.YesVotes)
		ev.No = uint64(out.NoVotes)
		ev.Result = out.Result
	default:
		return nil, fmt.Errorf("unsupported event %s", abiEvent.Name)
	}
	return ev, nil
}

// Events implements chain.Connection. New logs are fetched from the last
// scanned block and appended to the known events, which are indexed in
// emission order.
func (c *Contracts) Events(ctx context.Context, from uint64) ([]*types.Event, error) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if err := c.syncEvents(ctx); err != nil {
		return nil, err
	}
	if from >= uint64(len(c.events)) {
		return nil, nil
	}
	return append([]*types.Event(nil), c.events[from:]...), nil
}

// syncEvents fetches the logs between the last scanned block and the chain
// head. Must be called with eventsMu held.
func (c *Contracts) syncEvents(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	head, err := c.cli.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}
	if head < c.lastWatchBlock {
		return nil
	}
	logs, err := c.cli.FilterLogs(ctx, geth.FilterQuery{
		FromBlock: new(big.Int).SetUint64(c.lastWatchBlock),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{c.address},
	})
	if err != nil {
		return fmt.Errorf("failed to filter logs: %w", err)
	}
	for i := range logs {
		ev, err := decodeLog(&logs[i])
		if err != nil {
			log.Warnw("cannot decode contract log", "tx", logs[i].TxHash.Hex(), "error", err.Error())
			continue
		}
		ev.Index = uint64(len(c.events))
		c.events = append(c.events, ev)
	}
	c.lastWatchBlock = head + 1
	return nil
}
