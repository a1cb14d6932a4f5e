package session

import (
	"errors"
	"math/big"
	"sync"

	"github.com/cayc/incubator/internal/domain"
)

const (
	AlertSelectionFull       = "You can only select up to 3 NFTs."
	AlertSelectionIncomplete = "You must select exactly 3 NFTs before incubating."
	AlertWalletDisconnected  = "Wallet disconnected. Please reconnect."
	AlertWalletUnavailable   = "Please install MetaMask or another Web3 wallet provider."
	AlertConnectFailed       = "Failed to connect wallet. Please try again."
)

// State is the single source of truth of an incubation session
type State struct {
	Account    string
	ChainID    *big.Int
	Collection *domain.Collection
	Tokens     []domain.Token
	Selection  domain.Selection
	// Outcome is set while a partial transfer waits for retry or cancel
	Outcome         *domain.TransferOutcome
	IncubationState domain.IncubationState
	Status          string
	Alert           string
	Loading         bool
	LoadErr         error
}

// Connected reports whether a wallet account is available
func (s State) Connected() bool {
	return s.Account != ""
}

// Busy reports whether a transfer pass is running
func (s State) Busy() bool {
	return s.IncubationState == domain.IncubationStateTransferring
}

// RetryPending reports whether failed transfers wait for a user decision
func (s State) RetryPending() bool {
	return s.Outcome != nil && !s.Outcome.Done()
}

// Initial returns the state of a fresh session
func Initial() State {
	return State{IncubationState: domain.IncubationStateIdle}
}

// Reduce applies an action to a state and returns the next state
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Connected:
		s.Account = a.Account
		s.ChainID = a.ChainID
		s.Alert = ""
		s = clearDiscovery(s)

	case AccountsChanged:
		if len(a.Accounts) == 0 {
			s = disconnect(s)
			s.Alert = AlertWalletDisconnected
			break
		}
		if !domain.SameAddress(s.Account, a.Accounts[0]) {
			s.Account = a.Accounts[0]
			s = clearDiscovery(s)
			s.Outcome = nil
			s.Status = ""
		}

	case Disconnected:
		s = disconnect(s)

	case ChainChanged:
		s = Initial()
		s.ChainID = a.ChainID

	case CollectionChosen:
		c := a.Collection
		s.Collection = &c
		s = clearDiscovery(s)
		s.Status = ""
		s.Outcome = nil

	case WentBack:
		if s.Busy() {
			break
		}
		s.Collection = nil
		s = clearDiscovery(s)
		s.Status = ""
		s.Outcome = nil
		s.IncubationState = domain.IncubationStateIdle

	case LoadingStarted:
		s = clearDiscovery(s)
		s.Loading = true

	case TokensLoaded:
		// Results of a cycle started for another account or collection are stale
		if !domain.SameAddress(a.Account, s.Account) || s.Collection == nil || s.Collection.Key != a.Collection {
			break
		}
		s.Loading = false
		s.LoadErr = a.Err
		s.Tokens = a.Tokens
		s.Selection = domain.Selection{}

	case SelectionToggled:
		if s.Busy() || s.RetryPending() {
			break
		}
		if !isDiscovered(s.Tokens, a.Ref) {
			break
		}
		// Copy so earlier snapshots never share the backing array
		sel, _ := domain.NewSelection(s.Selection.Refs()...)
		if err := sel.Toggle(a.Ref); errors.Is(err, domain.ErrSelectionFull) {
			s.Alert = AlertSelectionFull
		}
		s.Selection = sel

	case TransferStarted:
		s.IncubationState = domain.IncubationStateTransferring
		s.Status = ""

	case TransferAborted:
		if s.RetryPending() {
			s.IncubationState = domain.StateForOutcome(*s.Outcome)
		} else {
			s.IncubationState = domain.IncubationStateIdle
		}
		s.Alert = a.Alert

	case TransferFinished:
		s.IncubationState = a.State
		if a.State == domain.IncubationStateAllSucceeded {
			s.Status = a.Message
			s.Tokens = withoutTransferred(s.Tokens, a.Outcome.Succeeded)
			s.Selection = domain.Selection{}
			s.Outcome = nil
			break
		}
		outcome := a.Outcome.Clone()
		s.Outcome = &outcome

	case RetryCanceled:
		if s.Outcome != nil {
			s.Tokens = withoutTransferred(s.Tokens, s.Outcome.Succeeded)
		}
		s.Status = a.Message
		s.Outcome = nil
		s.Selection = domain.Selection{}
		s.IncubationState = domain.IncubationStateIdle

	case StatusNoteAppended:
		if s.Status == "" {
			s.Status = a.Note
		} else {
			s.Status += "\n\n" + a.Note
		}

	case AlertRaised:
		s.Alert = a.Alert

	case AlertDismissed:
		s.Alert = ""
	}

	return s
}

func disconnect(s State) State {
	s.Account = ""
	s.Outcome = nil
	s.Status = ""
	return clearDiscovery(s)
}

func clearDiscovery(s State) State {
	s.Tokens = nil
	s.Selection = domain.Selection{}
	s.Loading = false
	s.LoadErr = nil
	return s
}

func isDiscovered(tokens []domain.Token, ref domain.TokenRef) bool {
	for _, t := range tokens {
		if t.Ref().Equal(ref) {
			return true
		}
	}
	return false
}

func withoutTransferred(tokens []domain.Token, transferred []domain.TokenRef) []domain.Token {
	out := make([]domain.Token, 0, len(tokens))
	for _, t := range tokens {
		gone := false
		for _, r := range transferred {
			if t.Ref().Equal(r) {
				gone = true
				break
			}
		}
		if !gone {
			out = append(out, t)
		}
	}
	return out
}

// Store holds the session state and notifies subscribers after every dispatch
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// NewStore creates a store in the initial state
func NewStore() *Store {
	return &Store{
		state: Initial(),
		subs:  make(map[int]func(State)),
	}
}

// State returns the current snapshot
func (st *Store) State() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Dispatch reduces the action and delivers the new snapshot to every subscriber
func (st *Store) Dispatch(a Action) State {
	st.mu.Lock()
	st.state = Reduce(st.state, a)
	next := st.state
	subs := make([]func(State), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Subscribe registers a listener and returns its unsubscribe function
func (st *Store) Subscribe(fn func(State)) func() {
	st.mu.Lock()
	defer st.mu.Unlock()

	id := st.nextID
	st.nextID++
	st.subs[id] = fn

	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.subs, id)
	}
}
