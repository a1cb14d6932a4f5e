package wallet

import (
	"fmt"

	"github.com/cayc/incubator/internal/domain"
)

// Config selects the wallet backend
type Config struct {
	// KeystoreDir is an encrypted key directory, used when set
	KeystoreDir string
	// SignerEndpoint is a clef compatible signer, e.g. ipc path or http URL
	SignerEndpoint string
}

// Open returns the configured wallet backend.
// No backend configured is domain.ErrWalletUnavailable.
func Open(cfg Config, prompt PassphrasePrompt) (Provider, error) {
	switch {
	case cfg.KeystoreDir != "":
		if prompt == nil {
			return nil, fmt.Errorf("%w: keystore requires a passphrase prompt", domain.ErrWalletUnavailable)
		}
		return NewKeystoreProvider(cfg.KeystoreDir, prompt), nil
	case cfg.SignerEndpoint != "":
		return NewExternalProvider(cfg.SignerEndpoint)
	default:
		return nil, domain.ErrWalletUnavailable
	}
}
