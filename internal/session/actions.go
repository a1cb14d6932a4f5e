package session

import (
	"math/big"

	"github.com/cayc/incubator/internal/domain"
)

// Action is a state transition request handled by Reduce
type Action interface {
	action()
}

// Connected records the account exposed by the wallet after a connect request
type Connected struct {
	Account string
	ChainID *big.Int
}

// AccountsChanged mirrors a wallet account change notification
type AccountsChanged struct {
	Accounts []string
}

// Disconnected clears the wallet session
type Disconnected struct{}

// ChainChanged resets the whole session on a network switch
type ChainChanged struct {
	ChainID *big.Int
}

// CollectionChosen opens a collection
type CollectionChosen struct {
	Collection domain.Collection
}

// WentBack returns to the collection menu
type WentBack struct{}

// LoadingStarted marks the start of a discovery cycle
type LoadingStarted struct{}

// TokensLoaded delivers the result of a discovery cycle started for Account and Collection
type TokensLoaded struct {
	Account    string
	Collection domain.CollectionKey
	Tokens     []domain.Token
	Err        error
}

// SelectionToggled selects or deselects a discovered token
type SelectionToggled struct {
	Ref domain.TokenRef
}

// TransferStarted marks the start of a transfer pass
type TransferStarted struct{}

// TransferAborted ends a transfer pass that never sent a transaction, e.g. a declined confirmation
type TransferAborted struct {
	Alert string
}

// TransferFinished records the outcome of a transfer pass
type TransferFinished struct {
	State   domain.IncubationState
	Outcome domain.TransferOutcome
	Message string
}

// RetryCanceled closes the retry offer with a final summary
type RetryCanceled struct {
	Message string
}

// StatusNoteAppended appends a note to the status message
type StatusNoteAppended struct {
	Note string
}

// AlertRaised shows an alert, e.g. a failed wallet connection
type AlertRaised struct {
	Alert string
}

// AlertDismissed clears the pending alert
type AlertDismissed struct{}

func (Connected) action()          {}
func (AccountsChanged) action()    {}
func (Disconnected) action()       {}
func (ChainChanged) action()       {}
func (CollectionChosen) action()   {}
func (WentBack) action()           {}
func (LoadingStarted) action()     {}
func (TokensLoaded) action()       {}
func (SelectionToggled) action()   {}
func (TransferStarted) action()    {}
func (TransferAborted) action()    {}
func (TransferFinished) action()   {}
func (RetryCanceled) action()      {}
func (StatusNoteAppended) action() {}
func (AlertRaised) action()        {}
func (AlertDismissed) action()     {}
