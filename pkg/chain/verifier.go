package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

// ClaimedEventSignature is the topic emitted by the claims contract on redemption.
var ClaimedEventSignature = gethcrypto.Keccak256Hash([]byte("Claimed(uint256,address,uint256)"))

var (
	// ErrPending means the transaction is unknown or not yet deep enough. Retry later.
	ErrPending = errors.New("chain: claim not yet confirmed")
	// ErrMismatch means the chain disagrees with the local submission.
	ErrMismatch = errors.New("chain: claim does not match submission")
)

// EVMClient defines the subset of the Ethereum RPC used by the verifier.
type EVMClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
}

// DialEVMClient initialises an EVM RPC client for the provided endpoint.
func DialEVMClient(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("evm endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// ExpectedClaim is the locally recorded claim a transaction must prove.
type ExpectedClaim struct {
	Index   uint64
	Account common.Address
	Amount  *uint256.Int
}

// Observation describes the confirmed on-chain claim.
type Observation struct {
	BlockNumber   uint64
	Confirmations uint64
}

// ClaimVerifier confirms claim transactions.
type ClaimVerifier interface {
	VerifyClaim(ctx context.Context, txHash common.Hash, expected ExpectedClaim) (*Observation, error)
}

// EVMVerifier implements ClaimVerifier against an Ethereum node.
type EVMVerifier struct {
	client        EVMClient
	contract      common.Address
	confirmations uint64
}

// NewEVMVerifier constructs a verifier for the claims contract.
func NewEVMVerifier(client EVMClient, contract common.Address, confirmations uint64) *EVMVerifier {
	return &EVMVerifier{client: client, contract: contract, confirmations: confirmations}
}

// VerifyClaim checks that txHash succeeded, is deep enough and emitted a Claimed log
// from the claims contract matching expected. Pending results wrap ErrPending with
// CodeDependency; disagreements wrap ErrMismatch with CodeReconciliationMismatch.
func (v *EVMVerifier) VerifyClaim(ctx context.Context, txHash common.Hash, expected ExpectedClaim) (*Observation, error) {
	if v == nil || v.client == nil {
		return nil, fmt.Errorf("evm verifier not initialised")
	}
	if (txHash == common.Hash{}) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx hash required")
	}
	if (expected.Account == common.Address{}) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "claim account required")
	}
	if expected.Amount == nil || expected.Amount.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "claim amount must be positive")
	}

	receipt, err := v.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, pending("transaction %s not found", txHash.Hex())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch receipt")
	}
	if receipt == nil {
		return nil, pending("transaction %s receipt missing", txHash.Hex())
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return nil, mismatch("transaction %s reverted", txHash.Hex())
	}
	if receipt.BlockNumber == nil {
		return nil, pending("transaction %s not mined", txHash.Hex())
	}

	header, err := v.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch head")
	}
	if header == nil || header.Number == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "block metadata unavailable")
	}
	if header.Number.Cmp(receipt.BlockNumber) < 0 {
		return nil, pending("transaction block ahead of head")
	}
	confirmed := new(big.Int).Sub(header.Number, receipt.BlockNumber)
	confirmed.Add(confirmed, big.NewInt(1))
	if confirmed.Cmp(new(big.Int).SetUint64(v.confirmations)) < 0 {
		return nil, pending("insufficient confirmations: have %s want %d", confirmed.String(), v.confirmations)
	}

	found := false
	for _, log := range receipt.Logs {
		claim, ok := decodeClaimed(log, v.contract)
		if !ok {
			continue
		}
		found = true
		if claim.Index == expected.Index && claim.Account == expected.Account && claim.Amount.Eq(expected.Amount) {
			return &Observation{BlockNumber: receipt.BlockNumber.Uint64(), Confirmations: confirmed.Uint64()}, nil
		}
	}
	if found {
		return nil, mismatch("claimed log in %s differs from submission", txHash.Hex())
	}
	return nil, mismatch("no claimed log from %s in %s", v.contract.Hex(), txHash.Hex())
}

func decodeClaimed(log *gethtypes.Log, contract common.Address) (ExpectedClaim, bool) {
	if log == nil || log.Address != contract {
		return ExpectedClaim{}, false
	}
	if len(log.Topics) == 0 || log.Topics[0] != ClaimedEventSignature {
		return ExpectedClaim{}, false
	}
	if len(log.Data) != 96 {
		return ExpectedClaim{}, false
	}
	index := new(uint256.Int).SetBytes(log.Data[0:32])
	if !index.IsUint64() {
		return ExpectedClaim{}, false
	}
	return ExpectedClaim{
		Index:   index.Uint64(),
		Account: common.BytesToAddress(log.Data[32:64]),
		Amount:  new(uint256.Int).SetBytes(log.Data[64:96]),
	}, true
}

func pending(format string, args ...any) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, ErrPending, fmt.Sprintf(format, args...))
}

func mismatch(format string, args ...any) error {
	return pkgerrors.Wrap(pkgerrors.CodeReconciliationMismatch, ErrMismatch, fmt.Sprintf(format, args...))
}
