package session

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cayc/incubator/internal/domain"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

func rarity(t *testing.T) domain.Collection {
	c, err := domain.CollectionByKey(domain.CollectionRarity)
	require.NoError(t, err)
	return c
}

func tokens(ids ...string) []domain.Token {
	out := make([]domain.Token, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Token{TokenID: id, ContractAddress: "0xfd39CD1F87a237C628C42c0Efde88AC02654B775"})
	}
	return out
}

func ref(id string) domain.TokenRef {
	return domain.TokenRef{TokenID: id, ContractAddress: "0xfd39CD1F87a237C628C42c0Efde88AC02654B775"}
}

func loaded(t *testing.T, ids ...string) State {
	s := Reduce(Initial(), Connected{Account: alice, ChainID: big.NewInt(1)})
	s = Reduce(s, CollectionChosen{Collection: rarity(t)})
	s = Reduce(s, LoadingStarted{})
	return Reduce(s, TokensLoaded{Account: alice, Collection: domain.CollectionRarity, Tokens: tokens(ids...)})
}

func TestReduce_Selection(t *testing.T) {
	s := loaded(t, "1", "2", "3", "4")

	s = Reduce(s, SelectionToggled{Ref: ref("1")})
	s = Reduce(s, SelectionToggled{Ref: ref("2")})
	s = Reduce(s, SelectionToggled{Ref: ref("3")})
	assert.True(t, s.Selection.Complete())

	s = Reduce(s, SelectionToggled{Ref: ref("4")})
	assert.Equal(t, AlertSelectionFull, s.Alert)
	assert.Equal(t, []string{"1", "2", "3"}, s.Selection.IDs())

	// Tokens outside the discovered set are ignored
	s = Reduce(s, AlertDismissed{})
	s = Reduce(s, SelectionToggled{Ref: ref("2")})
	s = Reduce(s, SelectionToggled{Ref: ref("99")})
	assert.Equal(t, []string{"1", "3"}, s.Selection.IDs())
	assert.Empty(t, s.Alert)
}

func TestReduce_SnapshotsDoNotShareSelection(t *testing.T) {
	s := loaded(t, "1", "2", "3", "4")
	s = Reduce(s, SelectionToggled{Ref: ref("1")})
	s = Reduce(s, SelectionToggled{Ref: ref("2")})

	before := s
	after := Reduce(s, SelectionToggled{Ref: ref("3")})
	other := Reduce(before, SelectionToggled{Ref: ref("4")})

	assert.Equal(t, []string{"1", "2"}, before.Selection.IDs())
	assert.Equal(t, []string{"1", "2", "3"}, after.Selection.IDs())
	assert.Equal(t, []string{"1", "2", "4"}, other.Selection.IDs())
}

func TestReduce_AccountsChanged(t *testing.T) {
	s := loaded(t, "1", "2")
	s = Reduce(s, SelectionToggled{Ref: ref("1")})

	// Same account in another case is not a change
	same := Reduce(s, AccountsChanged{Accounts: []string{"0x1111111111111111111111111111111111111111"}})
	assert.Len(t, same.Tokens, 2)

	switched := Reduce(s, AccountsChanged{Accounts: []string{bob}})
	assert.Equal(t, bob, switched.Account)
	assert.Empty(t, switched.Tokens)
	assert.Equal(t, 0, switched.Selection.Len())
	require.NotNil(t, switched.Collection)

	gone := Reduce(s, AccountsChanged{Accounts: nil})
	assert.False(t, gone.Connected())
	assert.Equal(t, AlertWalletDisconnected, gone.Alert)
	assert.Empty(t, gone.Tokens)
}

func TestReduce_ChainChangedResetsEverything(t *testing.T) {
	s := loaded(t, "1")
	s = Reduce(s, ChainChanged{ChainID: big.NewInt(11155111)})

	assert.False(t, s.Connected())
	assert.Nil(t, s.Collection)
	assert.Empty(t, s.Tokens)
	assert.Equal(t, big.NewInt(11155111), s.ChainID)
	assert.Equal(t, domain.IncubationStateIdle, s.IncubationState)
}

func TestReduce_StaleTokensIgnored(t *testing.T) {
	s := Reduce(Initial(), Connected{Account: alice})
	s = Reduce(s, CollectionChosen{Collection: rarity(t)})
	s = Reduce(s, LoadingStarted{})

	s = Reduce(s, TokensLoaded{Account: bob, Collection: domain.CollectionRarity, Tokens: tokens("1")})
	assert.True(t, s.Loading)
	assert.Empty(t, s.Tokens)

	s = Reduce(s, TokensLoaded{Account: alice, Collection: domain.CollectionGorilla, Tokens: tokens("1")})
	assert.True(t, s.Loading)

	s = Reduce(s, TokensLoaded{Account: alice, Collection: domain.CollectionRarity, Err: errors.New("boom")})
	assert.False(t, s.Loading)
	assert.Error(t, s.LoadErr)
}

func TestReduce_TransferLifecycle(t *testing.T) {
	s := loaded(t, "1", "2", "3", "4")
	for _, id := range []string{"1", "2", "3"} {
		s = Reduce(s, SelectionToggled{Ref: ref(id)})
	}

	s = Reduce(s, TransferStarted{})
	assert.True(t, s.Busy())

	// Selection is frozen while transferring
	frozen := Reduce(s, SelectionToggled{Ref: ref("1")})
	assert.Equal(t, 3, frozen.Selection.Len())
	// Navigation is blocked while transferring
	assert.NotNil(t, Reduce(s, WentBack{}).Collection)

	partial := domain.TransferOutcome{
		Succeeded: []domain.TokenRef{ref("1"), ref("3")},
		Failed:    []domain.TokenRef{ref("2")},
	}
	s = Reduce(s, TransferFinished{State: domain.IncubationStatePartialRetryPending, Outcome: partial})
	require.True(t, s.RetryPending())
	assert.Equal(t, []string{"2"}, domain.TokenIDs(s.Outcome.Failed))

	s = Reduce(s, RetryCanceled{Message: "Transfer Summary"})
	assert.False(t, s.RetryPending())
	assert.Equal(t, "Transfer Summary", s.Status)
	assert.Equal(t, []string{"2", "4"}, []string{s.Tokens[0].TokenID, s.Tokens[1].TokenID})
	assert.Equal(t, domain.IncubationStateIdle, s.IncubationState)
}

func TestReduce_FullSuccessAndNote(t *testing.T) {
	s := loaded(t, "1", "2", "3")
	for _, id := range []string{"1", "2", "3"} {
		s = Reduce(s, SelectionToggled{Ref: ref(id)})
	}
	s = Reduce(s, TransferStarted{})
	s = Reduce(s, TransferFinished{
		State:   domain.IncubationStateAllSucceeded,
		Outcome: domain.TransferOutcome{Succeeded: []domain.TokenRef{ref("1"), ref("2"), ref("3")}},
		Message: "All selected NFTs transferred successfully!",
	})

	assert.Empty(t, s.Tokens)
	assert.Equal(t, 0, s.Selection.Len())

	s = Reduce(s, StatusNoteAppended{Note: "Note: email failed"})
	assert.Equal(t, "All selected NFTs transferred successfully!\n\nNote: email failed", s.Status)
}

func TestReduce_TransferAborted(t *testing.T) {
	s := loaded(t, "1", "2", "3")
	for _, id := range []string{"1", "2", "3"} {
		s = Reduce(s, SelectionToggled{Ref: ref(id)})
	}

	s = Reduce(s, TransferStarted{})
	s = Reduce(s, TransferAborted{Alert: "incubation not confirmed"})
	assert.False(t, s.Busy())
	assert.Equal(t, domain.IncubationStateIdle, s.IncubationState)
	assert.Equal(t, "incubation not confirmed", s.Alert)
	// The selection survives so the owner can try again
	assert.Equal(t, 3, s.Selection.Len())

	// An aborted retry keeps the pending outcome
	partial := domain.TransferOutcome{Succeeded: []domain.TokenRef{ref("1")}, Failed: []domain.TokenRef{ref("2"), ref("3")}}
	s = Reduce(s, TransferStarted{})
	s = Reduce(s, TransferFinished{State: domain.IncubationStatePartialRetryPending, Outcome: partial})
	s = Reduce(s, TransferStarted{})
	s = Reduce(s, TransferAborted{})
	assert.True(t, s.RetryPending())
	assert.Equal(t, domain.IncubationStatePartialRetryPending, s.IncubationState)
}

func TestStore_Subscribe(t *testing.T) {
	st := NewStore()

	var seen []State
	unsubscribe := st.Subscribe(func(s State) {
		seen = append(seen, s)
	})

	st.Dispatch(Connected{Account: alice})
	unsubscribe()
	st.Dispatch(Disconnected{})

	require.Len(t, seen, 1)
	assert.Equal(t, alice, seen[0].Account)
	assert.False(t, st.State().Connected())
}
