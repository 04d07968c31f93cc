package ens

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const registryABI = `[{"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

const resolverABI = `[{"inputs":[{"name":"node","type":"bytes32"},{"name":"key","type":"string"}],"name":"text","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}]`

var (
	registryContract = mustParseABI(registryABI)
	resolverContract = mustParseABI(resolverABI)
)

// ContractCaller: минимум от ethclient.Client, нужный для eth_call.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TextResolver читает текстовую запись ENS-имени.
type TextResolver interface {
	Text(ctx context.Context, name, key string) (string, error)
}

// Client ходит в ENS Registry за адресом резолвера и затем читает text(node, key).
type Client struct {
	caller   ContractCaller
	registry common.Address
	logger   *zap.Logger
}

func NewClient(caller ContractCaller, registry common.Address, logger *zap.Logger) *Client {
	return &Client{
		caller:   caller,
		registry: registry,
		logger:   logger.Named("ens"),
	}
}

// Text реализует TextResolver. name должен быть нормализован.
func (c *Client) Text(ctx context.Context, name, key string) (string, error) {
	node := Namehash(name)

	resolver, err := c.resolverOf(ctx, name, node)
	if err != nil {
		return "", err
	}

	data, err := resolverContract.Pack("text", node, key)
	if err != nil {
		return "", fmt.Errorf("ens: pack text call: %w", err)
	}

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &resolver, Data: data}, nil)
	if err != nil {
		return "", classify(ctx, name, err)
	}

	values, err := resolverContract.Unpack("text", out)
	if err != nil || len(values) != 1 {
		return "", &ResolutionError{Kind: KindUnavailable, Name: name, Err: fmt.Errorf("malformed text response: %v", err)}
	}
	text, ok := values[0].(string)
	if !ok {
		return "", &ResolutionError{Kind: KindUnavailable, Name: name, Err: errors.New("text response is not a string")}
	}

	if text == "" {
		return "", ErrRecordNotSet
	}

	c.logger.Debug("text record fetched", zap.String("name", name), zap.String("key", key))
	return text, nil
}

func (c *Client) resolverOf(ctx context.Context, name string, node [32]byte) (common.Address, error) {
	data, err := registryContract.Pack("resolver", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("ens: pack resolver call: %w", err)
	}

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.registry, Data: data}, nil)
	if err != nil {
		return common.Address{}, classify(ctx, name, err)
	}

	values, err := registryContract.Unpack("resolver", out)
	if err != nil || len(values) != 1 {
		return common.Address{}, &ResolutionError{Kind: KindUnavailable, Name: name, Err: fmt.Errorf("malformed resolver response: %v", err)}
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, &ResolutionError{Kind: KindUnavailable, Name: name, Err: errors.New("resolver response is not an address")}
	}

	// Нулевой резолвер: имя не настроено
	if addr == (common.Address{}) {
		return common.Address{}, &ResolutionError{Kind: KindNotFound, Name: name}
	}
	return addr, nil
}

// classify переводит ошибку транспорта в ResolutionError
func classify(ctx context.Context, name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ResolutionError{Kind: KindTimeout, Name: name, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &ResolutionError{Kind: KindUnavailable, Name: name, Err: err}
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("ens: invalid ABI: %v", err))
	}
	return parsed
}
