package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/cayc/incubator/internal/adapter"
	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/logger"
)

var (
	// transferEventSignature is the keccak256 hash of Transfer(address,address,uint256)
	transferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

	erc721ABI = mustParseABI(`[
		{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"payable":false,"stateMutability":"view","type":"function"},
		{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},
		{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"name":"transferFrom","outputs":[],"payable":false,"stateMutability":"nonpayable","type":"function"}
	]`)
)

const (
	defaultReceiptPollInterval = 2 * time.Second
	defaultReceiptTimeout      = 10 * time.Minute
	initialLogStepSize         = uint64(1000000)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid ERC721 ABI: %v", err))
	}
	return parsed
}

// TransferEvent is a decoded ERC721 Transfer log
type TransferEvent struct {
	From        string
	To          string
	TokenID     string
	BlockNumber uint64
	LogIndex    uint
}

// TxSigner signs transactions on behalf of a wallet account
type TxSigner interface {
	SignTx(ctx context.Context, account string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// LedgerClient is the read and write surface against the token contracts
//
//go:generate mockgen -source=client.go -destination=../../mocks/ledger_client.go -package=mocks -mock_names=LedgerClient=MockLedgerClient
type LedgerClient interface {
	// TransferEvents returns every Transfer log of the contract that moved a token
	// to or from the account, ordered as they happened on chain
	TransferEvents(ctx context.Context, contractAddress, account string) ([]TransferEvent, error)

	// ERC721OwnerOf fetches the current owner of an ERC721 token
	ERC721OwnerOf(ctx context.Context, contractAddress, tokenNumber string) (string, error)

	// ERC721TokenURI fetches the tokenURI from an ERC721 contract
	ERC721TokenURI(ctx context.Context, contractAddress, tokenNumber string) (string, error)

	// ERC721TransferFrom submits transferFrom(from, to, tokenId) signed by the wallet
	// and waits until it is mined. A reverted receipt returns domain.ErrTransactionReverted.
	ERC721TransferFrom(ctx context.Context, signer TxSigner, contractAddress, from, to, tokenNumber string) (string, error)

	// ChainID returns the chain ID of the connected node
	ChainID(ctx context.Context) (*big.Int, error)

	// Close closes the connection
	Close()
}

// Config holds receipt polling settings
type Config struct {
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
}

type ethereumClient struct {
	client adapter.EthClient
	cfg    Config
}

// NewClient creates a ledger client on top of an Ethereum RPC connection
func NewClient(client adapter.EthClient, cfg Config) LedgerClient {
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = defaultReceiptPollInterval
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = defaultReceiptTimeout
	}
	return &ethereumClient{client: client, cfg: cfg}
}

// TransferEvents scans the whole contract history for transfers involving the account
func (c *ethereumClient) TransferEvents(ctx context.Context, contractAddress, account string) ([]TransferEvent, error) {
	contract := common.HexToAddress(contractAddress)
	accountTopic := common.BytesToHash(common.HexToAddress(account).Bytes())

	// Incoming and outgoing transfers are separate topic positions
	incoming, err := c.filterLogsWithPagination(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{transferEventSignature}, nil, {accountTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch incoming transfers: %w", err)
	}

	outgoing, err := c.filterLogsWithPagination(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{transferEventSignature}, {accountTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outgoing transfers: %w", err)
	}

	seen := make(map[string]struct{}, len(incoming)+len(outgoing))
	var events []TransferEvent
	for _, vLog := range append(incoming, outgoing...) {
		// ERC721 Transfer has 4 topics, ERC20 Transfer only 3
		if len(vLog.Topics) != 4 || vLog.Topics[0] != transferEventSignature {
			continue
		}
		key := fmt.Sprintf("%s:%d", vLog.TxHash.Hex(), vLog.Index)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		events = append(events, TransferEvent{
			From:        common.BytesToAddress(vLog.Topics[1].Bytes()).Hex(),
			To:          common.BytesToAddress(vLog.Topics[2].Bytes()).Hex(),
			TokenID:     new(big.Int).SetBytes(vLog.Topics[3].Bytes()).String(),
			BlockNumber: vLog.BlockNumber,
			LogIndex:    vLog.Index,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	return events, nil
}

// filterLogsWithPagination walks genesis to latest in large steps so providers
// with result caps still return the full history
func (c *ethereumClient) filterLogsWithPagination(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	fromBlock := big.NewInt(0)
	if query.FromBlock != nil {
		fromBlock = query.FromBlock
	}

	var toBlock *big.Int
	if query.ToBlock != nil {
		toBlock = query.ToBlock
	} else {
		latest, err := c.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest block: %w", err)
		}
		toBlock = latest.Number
	}

	var allLogs []types.Log
	currentFrom := new(big.Int).Set(fromBlock)

	for currentFrom.Cmp(toBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(initialLogStepSize-1))
		if currentTo.Cmp(toBlock) > 0 {
			currentTo.Set(toBlock)
		}

		rangeQuery := query
		rangeQuery.FromBlock = new(big.Int).Set(currentFrom)
		rangeQuery.ToBlock = currentTo

		logs, err := c.getLogsWithRetry(ctx, rangeQuery, initialLogStepSize)
		if err != nil {
			return nil, fmt.Errorf("failed to get logs for range %d-%d: %w", currentFrom.Uint64(), currentTo.Uint64(), err)
		}
		allLogs = append(allLogs, logs...)

		currentFrom.SetUint64(currentTo.Uint64() + 1)
	}

	return allLogs, nil
}

// getLogsWithRetry processes query.FromBlock..query.ToBlock in chunks,
// halving the chunk whenever the node rejects it as too large
func (c *ethereumClient) getLogsWithRetry(ctx context.Context, query ethereum.FilterQuery, stepSize uint64) ([]types.Log, error) {
	currentStepSize := stepSize

	var allLogs []types.Log
	currentFrom := new(big.Int).Set(query.FromBlock)

	for currentFrom.Cmp(query.ToBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(currentStepSize-1))
		if currentTo.Cmp(query.ToBlock) > 0 {
			currentTo.Set(query.ToBlock)
		}

		queryCopy := query
		queryCopy.FromBlock = new(big.Int).Set(currentFrom)
		queryCopy.ToBlock = new(big.Int).Set(currentTo)

		logs, err := c.client.FilterLogs(ctx, queryCopy)
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom.SetUint64(currentTo.Uint64() + 1)
			continue
		}

		if !isTooManyResultsError(err) || currentStepSize == 1 {
			return nil, err
		}

		currentStepSize = currentStepSize / 2

		logger.WarnCtx(ctx, "Too many results, reducing step size",
			zap.Uint64("oldStepSize", currentStepSize*2),
			zap.Uint64("newStepSize", currentStepSize),
			zap.Uint64("fromBlock", currentFrom.Uint64()),
			zap.Uint64("toBlock", currentTo.Uint64()))
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum")
}

func (c *ethereumClient) call(ctx context.Context, contractAddress, method string, args ...interface{}) ([]byte, error) {
	data, err := erc721ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack data: %w", err)
	}

	contractAddr := common.HexToAddress(contractAddress)
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contractAddr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call contract: %w", err)
	}

	return result, nil
}

func parseTokenNumber(tokenNumber string) (*big.Int, error) {
	tokenID, ok := new(big.Int).SetString(tokenNumber, 10)
	if !ok {
		return nil, fmt.Errorf("invalid token number: %s", tokenNumber)
	}
	return tokenID, nil
}

// ERC721TokenURI fetches the tokenURI from an ERC721 contract
func (c *ethereumClient) ERC721TokenURI(ctx context.Context, contractAddress, tokenNumber string) (string, error) {
	tokenID, err := parseTokenNumber(tokenNumber)
	if err != nil {
		return "", err
	}

	result, err := c.call(ctx, contractAddress, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}

	var uri string
	if err := erc721ABI.UnpackIntoInterface(&uri, "tokenURI", result); err != nil {
		return "", fmt.Errorf("failed to unpack result: %w", err)
	}

	return uri, nil
}

// ERC721OwnerOf fetches the current owner of an ERC721 token
func (c *ethereumClient) ERC721OwnerOf(ctx context.Context, contractAddress, tokenNumber string) (string, error) {
	tokenID, err := parseTokenNumber(tokenNumber)
	if err != nil {
		return "", err
	}

	result, err := c.call(ctx, contractAddress, "ownerOf", tokenID)
	if err != nil {
		return "", err
	}

	var owner common.Address
	if err := erc721ABI.UnpackIntoInterface(&owner, "ownerOf", result); err != nil {
		return "", fmt.Errorf("failed to unpack result: %w", err)
	}

	return owner.Hex(), nil
}

// ERC721TransferFrom builds, signs, sends and awaits a transferFrom transaction
func (c *ethereumClient) ERC721TransferFrom(ctx context.Context, signer TxSigner, contractAddress, from, to, tokenNumber string) (string, error) {
	tokenID, err := parseTokenNumber(tokenNumber)
	if err != nil {
		return "", err
	}

	fromAddr := common.HexToAddress(from)
	contractAddr := common.HexToAddress(contractAddress)

	data, err := erc721ABI.Pack("transferFrom", fromAddr, common.HexToAddress(to), tokenID)
	if err != nil {
		return "", fmt.Errorf("failed to pack data: %w", err)
	}

	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get chain id: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to suggest gas price: %w", err)
	}

	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: fromAddr,
		To:   &contractAddr,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &contractAddr,
		Value:    big.NewInt(0),
		Data:     data,
	})

	signed, err := signer.SignTx(ctx, from, tx, chainID)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	txHash := signed.Hash()
	logger.InfoCtx(ctx, "Transfer submitted",
		zap.String("contract", contractAddress),
		zap.String("tokenId", tokenNumber),
		zap.String("txHash", txHash.Hex()))

	receipt, err := c.waitMined(ctx, txHash)
	if err != nil {
		return txHash.Hex(), err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash.Hex(), fmt.Errorf("%w: %s", domain.ErrTransactionReverted, txHash.Hex())
	}

	return txHash.Hex(), nil
}

// waitMined polls for the receipt until it shows up or the receipt timeout passes
func (c *ethereumClient) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
	defer cancel()

	var receipt *types.Receipt
	operation := func() error {
		r, err := c.client.TransactionReceipt(waitCtx, txHash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("failed to get receipt: %w", err))
		}
		receipt = r
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.cfg.ReceiptPollInterval), waitCtx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, fmt.Errorf("transaction %s not mined: %w", txHash.Hex(), err)
	}

	return receipt, nil
}

// ChainID returns the chain ID of the connected node
func (c *ethereumClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.client.ChainID(ctx)
}

// Close closes the connection
func (c *ethereumClient) Close() {
	c.client.Close()
}
