package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"

	"github.com/educhain/assistant/backend/internal/config"
)

// Provider error codes defined by EIP-1193 and the wallet extensions.
const (
	CodeUserRejected      = 4001
	CodeUnrecognizedChain = 4902
)

// Provider is the wallet request surface: one method call with positional params.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// ProviderError is an error object returned by the provider.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *ProviderError  `json:"error"`
}

// RPCProvider sends JSON-RPC 2.0 requests to a node.
type RPCProvider struct {
	client *resty.Client
	url    string
	nextID atomic.Uint64
}

// NewRPCProvider creates a provider for the configured node.
func NewRPCProvider(cfg config.WalletConfig) *RPCProvider {
	client := resty.New().SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &RPCProvider{client: client, url: cfg.RPCURL}
}

func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      p.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	res, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(p.url)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%s request: node returned status %d", method, res.StatusCode())
	}

	var out rpcResponse
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, fmt.Errorf("%s response: %w", method, err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	return out.Result, nil
}
