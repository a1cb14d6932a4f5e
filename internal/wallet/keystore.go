package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/logger"
)

// PassphrasePrompt collects the approval of the account owner for a transaction.
// Implementations block until the owner answers; declining returns domain.ErrConfirmationDeclined.
type PassphrasePrompt interface {
	Passphrase(ctx context.Context, account string, tx *types.Transaction) (string, error)
}

type keystoreProvider struct {
	ks     *keystore.KeyStore
	prompt PassphrasePrompt
	feed   event.Feed

	walletEvents chan accounts.WalletEvent
	walletSub    event.Subscription
	closeOnce    sync.Once
	done         chan struct{}
}

// NewKeystoreProvider opens an encrypted key directory as the wallet
func NewKeystoreProvider(dir string, prompt PassphrasePrompt) Provider {
	return newKeystoreProvider(keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP), prompt)
}

func newKeystoreProvider(ks *keystore.KeyStore, prompt PassphrasePrompt) *keystoreProvider {
	p := &keystoreProvider{
		ks:           ks,
		prompt:       prompt,
		walletEvents: make(chan accounts.WalletEvent, 16),
		done:         make(chan struct{}),
	}
	p.walletSub = ks.Subscribe(p.walletEvents)
	go p.forward()
	return p
}

// forward turns key file arrivals and removals into account change events
func (p *keystoreProvider) forward() {
	for {
		select {
		case ev := <-p.walletEvents:
			if ev.Kind != accounts.WalletArrived && ev.Kind != accounts.WalletDropped {
				continue
			}
			p.feed.Send(Event{Kind: EventAccountsChanged, Accounts: p.accounts()})
		case err := <-p.walletSub.Err():
			if err != nil {
				logger.Error(err, zap.String("message", "keystore subscription failed"))
			}
			return
		case <-p.done:
			return
		}
	}
}

func (p *keystoreProvider) accounts() []string {
	accts := p.ks.Accounts()
	out := make([]string, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.Address.Hex())
	}
	return out
}

// RequestAccounts returns the accounts stored in the key directory
func (p *keystoreProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	accts := p.accounts()
	if len(accts) == 0 {
		return nil, domain.ErrNoAccounts
	}
	return accts, nil
}

// SignTx unlocks the key with the owner's passphrase for this one transaction
func (p *keystoreProvider) SignTx(ctx context.Context, account string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	acct, err := p.ks.Find(accounts.Account{Address: common.HexToAddress(account)})
	if err != nil {
		return nil, fmt.Errorf("account %s not in keystore: %w", account, err)
	}

	passphrase, err := p.prompt.Passphrase(ctx, acct.Address.Hex(), tx)
	if err != nil {
		return nil, err
	}

	signed, err := p.ks.SignTxWithPassphrase(acct, passphrase, tx, chainID)
	if err != nil {
		if errors.Is(err, keystore.ErrDecrypt) {
			return nil, fmt.Errorf("wrong passphrase for %s: %w", acct.Address.Hex(), err)
		}
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signed, nil
}

func (p *keystoreProvider) Subscribe(sink chan<- Event) event.Subscription {
	return p.feed.Subscribe(sink)
}

func (p *keystoreProvider) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.walletSub.Unsubscribe()
	})
}
