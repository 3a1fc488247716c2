package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"ballotd/internal/config"
	"ballotd/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Client adapts the Voting contract behind an Ethereum-compatible RPC
// endpoint. The service wallet is the sole transaction sender; voters
// never hold ledger keys.
//
// A failed startup resolution is logged but not fatal: calls report
// ErrContractNotDeployed / ErrLedgerUnavailable until a later call
// succeeds at reinitializing the connection.
type Client struct {
	cfg config.Config
	log zerolog.Logger
	key *ecdsa.PrivateKey

	mu       sync.Mutex
	eth      *ethclient.Client
	chainID  *big.Int
	contract *bind.BoundContract
	address  common.Address
	ready    bool
}

func NewClient(cfg config.Config, log zerolog.Logger) (*Client, error) {
	if cfg.LedgerPrivateKeyHex == "" {
		return nil, errors.New("LEDGER_PRIVATE_KEY_HEX is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.LedgerPrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse ledger private key: %w", err)
	}
	c := &Client{
		cfg: cfg,
		log: log.With().Str("component", "ledger").Logger(),
		key: key,
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout())
	defer cancel()
	if err := c.connect(ctx); err != nil {
		c.log.Warn().Err(err).Msg("ledger not reachable at startup; will retry on first use")
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	eth, err := ethclient.DialContext(ctx, c.cfg.LedgerRPCURL)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	address, err := resolveDeployment(c.cfg.LedgerContractAddress, c.cfg.LedgerArtifactPath, chainID)
	if err != nil {
		eth.Close()
		return err
	}
	parsed, err := abi.JSON(strings.NewReader(votingABI))
	if err != nil {
		eth.Close()
		return fmt.Errorf("parse voting abi: %w", err)
	}
	c.eth = eth
	c.chainID = chainID
	c.address = address
	c.contract = bind.NewBoundContract(address, parsed, eth, eth, eth)
	c.ready = true
	c.log.Info().
		Str("contract", address.Hex()).
		Str("chain_id", chainID.String()).
		Msg("voting contract resolved")
	return nil
}

type session struct {
	eth      *ethclient.Client
	chainID  *big.Int
	contract *bind.BoundContract
}

func (c *Client) ensureReady(ctx context.Context) (session, error) {
	c.mu.Lock()
	if c.ready {
		s := session{eth: c.eth, chainID: c.chainID, contract: c.contract}
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()
	if err := c.connect(ctx); err != nil {
		return session{}, err
	}
	c.mu.Lock()
	s := session{eth: c.eth, chainID: c.chainID, contract: c.contract}
	c.mu.Unlock()
	return s, nil
}

// Submit sends vote(choice) from the service wallet and blocks until the
// transaction is mined or the submit timeout elapses.
//
// Errors partition the outcomes the coordinator must distinguish:
// ErrVoteRejected when the contract reverts, ErrSubmissionFailed (or
// ErrLedgerUnavailable / ErrContractNotDeployed) when nothing was
// broadcast, and OutcomeUnknownError when the transaction went out but
// was not mined before the deadline.
func (c *Client) Submit(ctx context.Context, choice uint64) (domain.VoteReceipt, error) {
	s, err := c.ensureReady(ctx)
	if err != nil {
		return domain.VoteReceipt{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout())
	defer cancel()

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, s.chainID)
	if err != nil {
		return domain.VoteReceipt{}, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}
	opts.Context = ctx

	submittedAt := time.Now().UTC()
	tx, err := s.contract.Transact(opts, "vote", new(big.Int).SetUint64(choice))
	if err != nil {
		// Gas estimation runs the call first, so a semantic revert
		// surfaces here rather than in the mined receipt.
		if isRevert(err) {
			c.log.Info().Uint64("choice", choice).Err(err).Msg("vote reverted by contract")
			return domain.VoteReceipt{Status: domain.VoteStatusRejected, Choice: choice, SubmittedAt: submittedAt},
				domain.ErrVoteRejected
		}
		c.markUnready()
		return domain.VoteReceipt{}, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}

	receipt, err := bind.WaitMined(ctx, s.eth, tx)
	if err != nil {
		// The transaction was broadcast; its fate is undecided.
		c.log.Warn().
			Str("tx_hash", tx.Hash().Hex()).
			Err(err).
			Msg("transaction broadcast but not mined before deadline")
		return domain.VoteReceipt{Status: domain.VoteStatusUnknown, Choice: choice, TxHash: tx.Hash().Hex(), SubmittedAt: submittedAt},
			&domain.OutcomeUnknownError{TxHash: tx.Hash().Hex()}
	}

	out := domain.VoteReceipt{
		TxHash:      receipt.TxHash.Hex(),
		Choice:      choice,
		SubmittedAt: submittedAt,
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		out.Status = domain.VoteStatusRejected
		return out, domain.ErrVoteRejected
	}
	out.Status = domain.VoteStatusConfirmed
	return out, nil
}

// Tally reads the confirmed vote count for one choice. Read-only and
// eventually consistent with the chain head.
func (c *Client) Tally(ctx context.Context, choice uint64) (uint64, error) {
	return c.callUint(ctx, "getVotes", new(big.Int).SetUint64(choice))
}

// CandidateCount reads the number of choices the contract knows.
func (c *Client) CandidateCount(ctx context.Context) (uint64, error) {
	return c.callUint(ctx, "candidateCount")
}

func (c *Client) callUint(ctx context.Context, method string, args ...interface{}) (uint64, error) {
	s, err := c.ensureReady(ctx)
	if err != nil {
		return 0, err
	}
	var out []interface{}
	err = s.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	if err != nil {
		c.markUnready()
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrLedgerUnavailable, method, err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("%w: %s returned nothing", domain.ErrLedgerUnavailable, method)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%w: %s returned unexpected type", domain.ErrLedgerUnavailable, method)
	}
	return value.Uint64(), nil
}

func (c *Client) markUnready() {
	c.mu.Lock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	c.ready = false
	c.mu.Unlock()
}

func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "always failing transaction") ||
		strings.Contains(msg, "revert")
}
