// Package wallet reads account, network and balance data through a wallet provider.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	model "github.com/educhain/assistant/backend/internal/model/wallet"
	"github.com/educhain/assistant/backend/pkg/log"
)

const (
	ChainEthereumMainnet     = "0x1"
	ChainShardeumUnstablenet = "0x1f91"
)

var chainNames = map[string]string{
	ChainEthereumMainnet:     "Ethereum Mainnet",
	ChainShardeumUnstablenet: "Shardeum Unstablenet",
}

// NetworkName maps a hex chain id to a display name.
func NetworkName(chainID string) string {
	if name, ok := chainNames[strings.ToLower(chainID)]; ok {
		return name
	}
	return "Unknown Network"
}

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// FormatEther converts a hex wei quantity to ether with four decimals.
func FormatEther(hexWei string) (string, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(hexWei, "0x"), "0X")
	if digits == "" {
		return "", fmt.Errorf("invalid wei quantity %q", hexWei)
	}
	wei, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return "", fmt.Errorf("invalid wei quantity %q", hexWei)
	}
	return new(big.Rat).SetFrac(wei, weiPerEther).FloatString(4), nil
}

// Service is the read model over a Provider.
type Service struct {
	provider Provider
}

// NewService wraps provider.
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

func (s *Service) stringList(ctx context.Context, method string) ([]string, error) {
	raw, err := s.provider.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return accounts, nil
}

// Accounts lists the accounts already exposed by the provider.
func (s *Service) Accounts(ctx context.Context) ([]string, error) {
	return s.stringList(ctx, "eth_accounts")
}

// RequestAccounts asks the provider to expose accounts.
func (s *Service) RequestAccounts(ctx context.Context) ([]string, error) {
	return s.stringList(ctx, "eth_requestAccounts")
}

// Network returns the current chain.
func (s *Service) Network(ctx context.Context) (model.Network, error) {
	raw, err := s.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return model.Network{}, err
	}
	var chainID string
	if err := json.Unmarshal(raw, &chainID); err != nil {
		return model.Network{}, fmt.Errorf("decode eth_chainId result: %w", err)
	}
	return model.Network{ChainID: chainID, Name: NetworkName(chainID)}, nil
}

// Balance returns the latest balance of address in ether.
func (s *Service) Balance(ctx context.Context, address string) (string, error) {
	raw, err := s.provider.Request(ctx, "eth_getBalance", address, "latest")
	if err != nil {
		return "", err
	}
	var hexWei string
	if err := json.Unmarshal(raw, &hexWei); err != nil {
		return "", fmt.Errorf("decode eth_getBalance result: %w", err)
	}
	return FormatEther(hexWei)
}

// Account combines network and balance for address. A failed balance lookup reports "0".
func (s *Service) Account(ctx context.Context, address string) (model.Account, error) {
	network, err := s.Network(ctx)
	if err != nil {
		return model.Account{}, err
	}

	balance, err := s.Balance(ctx, address)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("address", address).Msg("balance lookup failed")
		balance = "0"
	}

	return model.Account{Address: address, Network: network, Balance: balance}, nil
}
