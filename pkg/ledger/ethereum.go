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

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// EthereumConfig configures the EVM ledger client.
type EthereumConfig struct {
	RPCURL          string
	ContractAddress string
	// PrivateKey is the hex-encoded key that signs server-submitted transactions.
	PrivateKey string
	// ChainID is queried from the node when zero.
	ChainID      int64
	PollInterval time.Duration
}

func (c EthereumConfig) validate() error {
	if c.RPCURL == "" {
		return errors.New("ETH_RPC_URL is required")
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("ETH_CONTRACT_ADDRESS %q is not a valid address", c.ContractAddress)
	}
	if c.PrivateKey == "" {
		return errors.New("ETH_PRIVATE_KEY is required")
	}
	return nil
}

// Ethereum is a Client backed by a deployed VotingSystem contract.
type Ethereum struct {
	logger       *zap.Logger
	rpc          *ethclient.Client
	abi          abi.ABI
	contract     *bind.BoundContract
	address      common.Address
	key          *ecdsa.PrivateKey
	from         common.Address
	chainID      *big.Int
	pollInterval time.Duration

	// txMu serializes submissions so pending nonces are assigned one at a time.
	txMu sync.Mutex
}

type electionSummaryTuple struct {
	Id             *big.Int
	Title          string
	Description    string
	StartTime      *big.Int
	EndTime        *big.Int
	Creator        common.Address
	IsPublic       bool
	CandidateCount *big.Int
	TotalVotes     *big.Int
	Initialized    bool
}

type candidateTuple struct {
	Id          *big.Int
	Name        string
	Description string
	VoteCount   *big.Int
}

// NewEthereum dials the node and binds the contract.
func NewEthereum(ctx context.Context, logger *zap.Logger, cfg EthereumConfig) (*Ethereum, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse ETH_PRIVATE_KEY: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(votingSystemABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = rpc.ChainID(ctx)
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	address := common.HexToAddress(cfg.ContractAddress)
	e := &Ethereum{
		logger:       logger,
		rpc:          rpc,
		abi:          parsed,
		contract:     bind.NewBoundContract(address, parsed, rpc, rpc, rpc),
		address:      address,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		pollInterval: pollInterval,
	}

	logger.Info("Ethereum ledger connected",
		zap.String("contract", address.Hex()),
		zap.String("signer", e.from.Hex()),
		zap.String("chain_id", chainID.String()),
	)
	return e, nil
}

func (e *Ethereum) ContractAddress() string { return e.address.Hex() }

func (e *Ethereum) Close() { e.rpc.Close() }

func (e *Ethereum) CreateElection(ctx context.Context, p ElectionParams) (*Receipt, error) {
	tx, err := e.transact(ctx, "createElection",
		p.Title,
		p.Description,
		big.NewInt(p.StartTime.Unix()),
		big.NewInt(p.EndTime.Unix()),
		p.IsPublic,
		p.CandidateNames,
		p.CandidateDescriptions,
	)
	if err != nil {
		return nil, err
	}

	receipt, err := e.waitMined(ctx, "createElection", tx)
	if err != nil {
		return nil, err
	}
	if receipt.ChainElectionID == nil {
		return nil, rejected("createElection", "no ElectionCreated event in receipt")
	}
	return receipt, nil
}

// Vote only works when voter is the configured signer. Wallet-signed votes go through
// WaitForTransaction instead.
func (e *Ethereum) Vote(ctx context.Context, chainElectionID uint64, voter string, optionIndex int) (*Receipt, error) {
	if common.HexToAddress(voter) != e.from {
		return nil, fmt.Errorf("vote: %w: votes must be signed by the voter's wallet", ErrUnsupported)
	}

	tx, err := e.transact(ctx, "vote", new(big.Int).SetUint64(chainElectionID), big.NewInt(int64(optionIndex)))
	if err != nil {
		return nil, err
	}
	return e.waitMined(ctx, "vote", tx)
}

func (e *Ethereum) WaitForTransaction(ctx context.Context, txHash string) (*Receipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		r, err := e.rpc.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if r.Status != types.ReceiptStatusSuccessful {
				return nil, rejected("transaction "+txHash, "reverted")
			}
			return e.toReceipt(r), nil
		case errors.Is(err, ethereum.NotFound):
			e.logger.Debug("Transaction not yet mined", zap.String("tx_hash", txHash))
		default:
			return nil, wrapWait(ctx, "transaction receipt", err)
		}

		select {
		case <-ctx.Done():
			return nil, wrapWait(ctx, "transaction "+txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (e *Ethereum) HasVoted(ctx context.Context, chainElectionID uint64, voter string) (bool, error) {
	out, err := e.call(ctx, "hasVoted", new(big.Int).SetUint64(chainElectionID), common.HexToAddress(voter))
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (e *Ethereum) GetSummary(ctx context.Context, chainElectionID uint64) (*Summary, error) {
	out, err := e.call(ctx, "getElectionSummary", new(big.Int).SetUint64(chainElectionID))
	if err != nil {
		return nil, err
	}
	t := *abi.ConvertType(out[0], new(electionSummaryTuple)).(*electionSummaryTuple)
	if !t.Initialized {
		return nil, rejected("getElectionSummary", fmt.Sprintf("election %d not found", chainElectionID))
	}
	return &Summary{
		ID:             t.Id.Uint64(),
		Title:          t.Title,
		Description:    t.Description,
		StartTime:      time.Unix(t.StartTime.Int64(), 0).UTC(),
		EndTime:        time.Unix(t.EndTime.Int64(), 0).UTC(),
		Creator:        t.Creator.Hex(),
		IsPublic:       t.IsPublic,
		CandidateCount: t.CandidateCount.Uint64(),
		TotalVotes:     t.TotalVotes.Uint64(),
	}, nil
}

func (e *Ethereum) GetCandidates(ctx context.Context, chainElectionID uint64) ([]Candidate, error) {
	out, err := e.call(ctx, "getAllCandidates", new(big.Int).SetUint64(chainElectionID))
	if err != nil {
		return nil, err
	}
	tuples := *abi.ConvertType(out[0], new([]candidateTuple)).(*[]candidateTuple)
	candidates := make([]Candidate, 0, len(tuples))
	for _, t := range tuples {
		candidates = append(candidates, Candidate{
			ID:          t.Id.Uint64(),
			Name:        t.Name,
			Description: t.Description,
			VoteCount:   t.VoteCount.Uint64(),
		})
	}
	return candidates, nil
}

func (e *Ethereum) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, wrapWait(ctx, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}

// transact estimates gas explicitly, so a call that would revert is refused before it is
// broadcast, then signs and sends the transaction.
func (e *Ethereum) transact(ctx context.Context, method string, args ...any) (*types.Transaction, error) {
	data, err := e.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	e.txMu.Lock()
	defer e.txMu.Unlock()

	gas, err := e.rpc.EstimateGas(ctx, ethereum.CallMsg{From: e.from, To: &e.address, Data: data})
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrapWait(ctx, method, err)
		}
		return nil, rejected(method, "gas estimation failed: "+err.Error())
	}

	opts, err := bind.NewKeyedTransactorWithChainID(e.key, e.chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = gas + gas/5

	tx, err := e.contract.Transact(opts, method, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrapWait(ctx, method, err)
		}
		return nil, rejected(method, err.Error())
	}

	e.logger.Info("Transaction submitted",
		zap.String("method", method),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("gas_limit", opts.GasLimit),
	)
	return tx, nil
}

func (e *Ethereum) waitMined(ctx context.Context, method string, tx *types.Transaction) (*Receipt, error) {
	r, err := bind.WaitMined(ctx, e.rpc, tx)
	if err != nil {
		return nil, wrapWait(ctx, method, err)
	}
	if r.Status != types.ReceiptStatusSuccessful {
		return nil, rejected(method, "transaction "+tx.Hash().Hex()+" reverted")
	}
	return e.toReceipt(r), nil
}

// toReceipt extracts ElectionCreated and Voted events emitted by the bound contract.
func (e *Ethereum) toReceipt(r *types.Receipt) *Receipt {
	out := &Receipt{
		TxHash:          r.TxHash.Hex(),
		ContractAddress: e.address.Hex(),
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}

	created := e.abi.Events["ElectionCreated"].ID
	voted := e.abi.Events["Voted"].ID
	for _, l := range r.Logs {
		if l.Address != e.address || len(l.Topics) == 0 {
			continue
		}
		switch {
		case l.Topics[0] == created && len(l.Topics) >= 2:
			id := new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64()
			out.ChainElectionID = &id
		case l.Topics[0] == voted && len(l.Topics) >= 4:
			id := new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64()
			candidate := new(big.Int).SetBytes(l.Topics[3].Bytes()).Uint64()
			out.ChainElectionID = &id
			out.Voter = common.BytesToAddress(l.Topics[2].Bytes()).Hex()
			out.CandidateID = &candidate
		}
	}
	return out
}

var _ Client = (*Ethereum)(nil)
