package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cayc/incubator/internal/domain"
)

type promptFunc func(ctx context.Context, account string, tx *types.Transaction) (string, error)

func (f promptFunc) Passphrase(ctx context.Context, account string, tx *types.Transaction) (string, error) {
	return f(ctx, account, tx)
}

func fixedPassphrase(pass string) PassphrasePrompt {
	return promptFunc(func(context.Context, string, *types.Transaction) (string, error) {
		return pass, nil
	})
}

func newTestKeystore(t *testing.T) *keystore.KeyStore {
	t.Helper()
	return keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
}

func unsignedTx() *types.Transaction {
	to := common.HexToAddress(domain.StagingAddress)
	return types.NewTx(&types.LegacyTx{
		Nonce:    1,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(0),
	})
}

func TestKeystoreProvider_RequestAccounts(t *testing.T) {
	ks := newTestKeystore(t)
	acct, err := ks.NewAccount("secret")
	require.NoError(t, err)

	p := newKeystoreProvider(ks, fixedPassphrase("secret"))
	t.Cleanup(p.Close)

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, domain.SameAddress(acct.Address.Hex(), accounts[0]))
}

func TestKeystoreProvider_RequestAccounts_Empty(t *testing.T) {
	p := newKeystoreProvider(newTestKeystore(t), fixedPassphrase(""))
	t.Cleanup(p.Close)

	_, err := p.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoAccounts)
}

func TestKeystoreProvider_SignTx(t *testing.T) {
	chainID := big.NewInt(1)

	tests := []struct {
		name        string
		prompt      PassphrasePrompt
		expectedErr error
	}{
		{
			name:   "correct passphrase",
			prompt: fixedPassphrase("secret"),
		},
		{
			name:        "wrong passphrase",
			prompt:      fixedPassphrase("nope"),
			expectedErr: keystore.ErrDecrypt,
		},
		{
			name: "owner declines",
			prompt: promptFunc(func(context.Context, string, *types.Transaction) (string, error) {
				return "", domain.ErrConfirmationDeclined
			}),
			expectedErr: domain.ErrConfirmationDeclined,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ks := newTestKeystore(t)
			acct, err := ks.NewAccount("secret")
			require.NoError(t, err)

			p := newKeystoreProvider(ks, tt.prompt)
			t.Cleanup(p.Close)

			signed, err := p.SignTx(context.Background(), acct.Address.Hex(), unsignedTx(), chainID)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)

			sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
			require.NoError(t, err)
			assert.Equal(t, acct.Address, sender)
		})
	}
}

func TestKeystoreProvider_SignTx_UnknownAccount(t *testing.T) {
	p := newKeystoreProvider(newTestKeystore(t), fixedPassphrase("secret"))
	t.Cleanup(p.Close)

	_, err := p.SignTx(context.Background(), "0x3333333333333333333333333333333333333333", unsignedTx(), big.NewInt(1))
	assert.Error(t, err)
}

func TestOpen_NoBackend(t *testing.T) {
	_, err := Open(Config{}, nil)
	assert.ErrorIs(t, err, domain.ErrWalletUnavailable)

	_, err = Open(Config{KeystoreDir: t.TempDir()}, nil)
	assert.ErrorIs(t, err, domain.ErrWalletUnavailable)
}
