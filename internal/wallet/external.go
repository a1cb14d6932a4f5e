package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/external"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/cayc/incubator/internal/domain"
)

// externalSigner is the subset of external.ExternalSigner used by the provider
type externalSigner interface {
	Accounts() []accounts.Account
	SignTx(account accounts.Account, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	Close() error
}

type externalProvider struct {
	signer externalSigner
	feed   event.Feed
}

// NewExternalProvider connects to a clef compatible signer; approvals happen in the signer's own UI
func NewExternalProvider(endpoint string) (Provider, error) {
	signer, err := external.NewExternalSigner(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWalletUnavailable, err)
	}
	return &externalProvider{signer: signer}, nil
}

func (p *externalProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	accts := p.signer.Accounts()
	if len(accts) == 0 {
		return nil, domain.ErrNoAccounts
	}
	out := make([]string, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.Address.Hex())
	}
	return out, nil
}

func (p *externalProvider) SignTx(ctx context.Context, account string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := p.signer.SignTx(accounts.Account{Address: common.HexToAddress(account)}, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("signer refused transaction: %w", err)
	}
	return signed, nil
}

// Subscribe only carries events forwarded by a Watcher, the signer itself has no push channel
func (p *externalProvider) Subscribe(sink chan<- Event) event.Subscription {
	return p.feed.Subscribe(sink)
}

func (p *externalProvider) Close() {
	_ = p.signer.Close()
}
