package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-dao-mirror/internal/adapter"
	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
)

const (
	// defaultStepSize is the initial block window for a single eth_getLogs call
	defaultStepSize = uint64(100000)

	// fetchTimeout bounds a whole FetchEvents call
	fetchTimeout = 2 * time.Minute
)

// EthereumClient is the chain connector used by the emitter and the snapshotter
//
//go:generate mockgen -source=client.go -destination=../../mocks/ethereum_client.go -package=mocks -mock_names=EthereumClient=MockEthereumClient
type EthereumClient interface {
	// FetchEvents returns the decoded events emitted by the descriptor's contract in [fromBlock, toBlock],
	// ordered by block number and log index
	FetchEvents(ctx context.Context, descriptor domain.ContractDescriptor, fromBlock, toBlock uint64) ([]domain.ChainEvent, error)

	// CallConstant invokes a zero-argument view method and returns its unpacked outputs
	CallConstant(ctx context.Context, contractAddress string, contractABI abi.ABI, method string) ([]interface{}, error)

	// BlockByNumber returns a block by number
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)

	// HeaderByNumber returns a header by number
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	// Close closes the connection
	Close()
}

type ethereumClient struct {
	chainID  domain.Chain
	client   adapter.EthClient
	stepSize uint64
}

func NewClient(chainID domain.Chain, client adapter.EthClient) EthereumClient {
	return &ethereumClient{chainID: chainID, client: client, stepSize: defaultStepSize}
}

// ParseABI parses a JSON ABI definition
func ParseABI(definition string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return parsed, nil
}

// FetchEvents fetches and decodes the contract's logs in the given block range
func (c *ethereumClient) FetchEvents(ctx context.Context, descriptor domain.ContractDescriptor, fromBlock, toBlock uint64) ([]domain.ChainEvent, error) {
	if fromBlock > toBlock {
		return nil, nil
	}

	contractABI, err := ParseABI(descriptor.ABI)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	query := ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress(descriptor.PublicAddress)},
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
	}

	logs, err := c.getLogsWithRetry(timeoutCtx, query, c.stepSize)
	if err != nil {
		return nil, fmt.Errorf("%w: logs for range %d-%d: %v", domain.ErrUpstreamFetch, fromBlock, toBlock, err)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	events := make([]domain.ChainEvent, 0, len(logs))
	for _, vLog := range logs {
		if vLog.Removed {
			continue
		}
		event, err := DecodeLog(contractABI, vLog)
		if err != nil {
			logger.WarnCtx(ctx, "Skipping undecodable log",
				zap.String("chain", string(c.chainID)),
				zap.String("contract", descriptor.PublicAddress),
				zap.String("txHash", vLog.TxHash.Hex()),
				zap.Uint("logIndex", vLog.Index),
				zap.Error(err))
			continue
		}
		if event != nil {
			events = append(events, *event)
		}
	}

	return events, nil
}

// getLogsWithRetry processes the entire range from query.FromBlock to query.ToBlock in chunks,
// halving the chunk whenever the node rejects it for returning too many results
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

		if !isTooManyResultsError(err) {
			return nil, err
		}
		if currentStepSize == 1 {
			return nil, fmt.Errorf("single block %d exceeds the log limit: %w", currentFrom.Uint64(), err)
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

// DecodeLog decodes a log emitted by a contract described by contractABI.
// Logs of events not declared in the ABI yield (nil, nil).
func DecodeLog(contractABI abi.ABI, vLog types.Log) (*domain.ChainEvent, error) {
	if len(vLog.Topics) == 0 {
		return nil, nil
	}

	event, err := contractABI.EventByID(vLog.Topics[0])
	if err != nil {
		return nil, nil //nolint:nilerr // anonymous or foreign events are not ours to decode
	}

	decoded := make(map[string]interface{}, len(event.Inputs))

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(decoded, indexed, vLog.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to decode indexed arguments of %s: %w", event.Name, err)
		}
	}
	if len(vLog.Data) > 0 {
		if err := event.Inputs.UnpackIntoMap(decoded, vLog.Data); err != nil {
			return nil, fmt.Errorf("failed to decode data of %s: %w", event.Name, err)
		}
	}

	values := make(domain.ReturnValues, 0, len(event.Inputs))
	for _, input := range event.Inputs {
		value, ok := decoded[input.Name]
		if !ok {
			continue
		}
		values = append(values, domain.Argument{Name: input.Name, Value: normalizeValue(value)})
	}

	return &domain.ChainEvent{
		EventName:       event.Name,
		ReturnValues:    values,
		BlockNumber:     vLog.BlockNumber,
		TransactionHash: vLog.TxHash.Hex(),
		LogIndex:        vLog.Index,
	}, nil
}

// normalizeValue converts decoded ABI values into the representations the mirror works with
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case common.Address:
		return val.Hex()
	case common.Hash:
		return val.Hex()
	case [32]byte:
		return common.BytesToHash(val[:]).Hex()
	case []byte:
		return common.Bytes2Hex(val)
	case []common.Address:
		out := make([]string, len(val))
		for i, a := range val {
			out[i] = a.Hex()
		}
		return out
	default:
		return v
	}
}

// CallConstant invokes a view method that takes no arguments
func (c *ethereumClient) CallConstant(ctx context.Context, contractAddress string, contractABI abi.ABI, method string) ([]interface{}, error) {
	data, err := contractABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	addr := common.HexToAddress(contractAddress)
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: call %s: %v", domain.ErrUpstreamFetch, method, err)
	}

	outputs, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}

	for i := range outputs {
		outputs[i] = normalizeValue(outputs[i])
	}
	return outputs, nil
}

// BlockByNumber returns a block by number
func (c *ethereumClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	return c.client.BlockByNumber(ctx, number)
}

// HeaderByNumber returns a header by number
func (c *ethereumClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.client.HeaderByNumber(ctx, number)
}

// Close closes the connection
func (c *ethereumClient) Close() {
	c.client.Close()
}
