package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
)

// ChainFromID converts a numeric chain ID into its CAIP-2 identifier
func ChainFromID(chainID *big.Int) Chain {
	if chainID == nil {
		return ""
	}
	return Chain(fmt.Sprintf("eip155:%s", chainID.String()))
}

// NormalizeAddress lowercases an address so it can be compared with any other representation
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SameAddress reports whether two addresses refer to the same account
func SameAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// IsValidAddress checks if the address is a non-zero hex address
func IsValidAddress(address string) bool {
	return common.IsHexAddress(address) && !SameAddress(address, ETHEREUM_ZERO_ADDRESS)
}

// Token is an ERC721 token discovered for the connected account
type Token struct {
	TokenID         string `json:"token_id"`         // decimal token number
	ContractAddress string `json:"contract_address"` // source contract (collections may span several)
	TokenURI        string `json:"token_uri"`        // gateway-normalized token URI
	Image           string `json:"image"`            // gateway-normalized image URL, empty when unavailable
}

// Ref returns the reference used to select the token
func (t Token) Ref() TokenRef {
	return TokenRef{TokenID: t.TokenID, ContractAddress: t.ContractAddress}
}

// TokenRef identifies a token within a collection by its number and source contract
type TokenRef struct {
	TokenID         string `json:"token_id"`
	ContractAddress string `json:"contract_address"`
}

// Equal compares two references, ignoring address case
func (r TokenRef) Equal(o TokenRef) bool {
	return r.TokenID == o.TokenID && NormalizeAddress(r.ContractAddress) == NormalizeAddress(o.ContractAddress)
}

// TokenIDs extracts the token numbers of the references, keeping their order
func TokenIDs(refs []TokenRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.TokenID)
	}
	return ids
}

// FindToken returns the discovered token a query names. The query is a token number,
// or contract:number when the number exists in several contracts of the collection.
func FindToken(tokens []Token, query string) (Token, error) {
	query = strings.TrimSpace(query)
	contract, tokenID, scoped := strings.Cut(query, ":")
	if !scoped {
		contract, tokenID = "", query
	}

	var found []Token
	for _, t := range tokens {
		if t.TokenID != tokenID {
			continue
		}
		if scoped && !SameAddress(t.ContractAddress, contract) {
			continue
		}
		found = append(found, t)
	}

	switch len(found) {
	case 0:
		return Token{}, fmt.Errorf("%w: %s", ErrTokenNotDiscovered, query)
	case 1:
		return found[0], nil
	default:
		contracts := make([]string, 0, len(found))
		for _, t := range found {
			contracts = append(contracts, t.ContractAddress)
		}
		return Token{}, fmt.Errorf("%w: %s is in %s, enter <contract>:%s",
			ErrTokenAmbiguous, tokenID, strings.Join(contracts, " and "), tokenID)
	}
}

// Selection is an ordered set of at most SelectionSize tokens
type Selection struct {
	refs []TokenRef
}

// NewSelection builds a selection from references, rejecting duplicates and overflow
func NewSelection(refs ...TokenRef) (Selection, error) {
	var s Selection
	for _, r := range refs {
		if s.Contains(r) {
			continue
		}
		if err := s.Toggle(r); err != nil {
			return Selection{}, err
		}
	}
	return s, nil
}

// Toggle adds the reference when absent and removes it when present
func (s *Selection) Toggle(ref TokenRef) error {
	for i, r := range s.refs {
		if r.Equal(ref) {
			s.refs = append(s.refs[:i:i], s.refs[i+1:]...)
			return nil
		}
	}
	if len(s.refs) >= SelectionSize {
		return ErrSelectionFull
	}
	s.refs = append(s.refs, ref)
	return nil
}

// Contains reports whether the reference is selected
func (s Selection) Contains(ref TokenRef) bool {
	for _, r := range s.refs {
		if r.Equal(ref) {
			return true
		}
	}
	return false
}

// Len returns the number of selected tokens
func (s Selection) Len() int {
	return len(s.refs)
}

// Complete reports whether incubation may proceed
func (s Selection) Complete() bool {
	return len(s.refs) == SelectionSize
}

// Refs returns a copy of the selected references in selection order
func (s Selection) Refs() []TokenRef {
	out := make([]TokenRef, len(s.refs))
	copy(out, s.refs)
	return out
}

// IDs returns the selected token numbers in selection order
func (s Selection) IDs() []string {
	return TokenIDs(s.refs)
}

// TransferOutcome partitions a transfer pass into succeeded and failed tokens
type TransferOutcome struct {
	Succeeded []TokenRef `json:"succeeded"`
	Failed    []TokenRef `json:"failed"`
}

// Done reports whether nothing is left to transfer
func (o TransferOutcome) Done() bool {
	return len(o.Failed) == 0
}

// Clone returns a deep copy of the outcome
func (o TransferOutcome) Clone() TransferOutcome {
	c := TransferOutcome{
		Succeeded: make([]TokenRef, len(o.Succeeded)),
		Failed:    make([]TokenRef, len(o.Failed)),
	}
	copy(c.Succeeded, o.Succeeded)
	copy(c.Failed, o.Failed)
	return c
}

// Ordered returns a copy whose partitions follow order. Refs missing from order keep their relative place at the end.
func (o TransferOutcome) Ordered(order []TokenRef) TransferOutcome {
	return TransferOutcome{
		Succeeded: orderRefs(o.Succeeded, order),
		Failed:    orderRefs(o.Failed, order),
	}
}

func orderRefs(refs []TokenRef, order []TokenRef) []TokenRef {
	out := make([]TokenRef, 0, len(refs))
	used := make([]bool, len(refs))
	for _, want := range order {
		for i, ref := range refs {
			if !used[i] && ref.Equal(want) {
				out = append(out, ref)
				used[i] = true
				break
			}
		}
	}
	for i, ref := range refs {
		if !used[i] {
			out = append(out, ref)
		}
	}
	return out
}

// IncubationState is the state of the transfer workflow
type IncubationState string

const (
	IncubationStateIdle                IncubationState = "idle"
	IncubationStateTransferring        IncubationState = "transferring"
	IncubationStateAllSucceeded        IncubationState = "all_succeeded"
	IncubationStatePartialRetryPending IncubationState = "partial_retry_pending"
	IncubationStateAllFailed           IncubationState = "all_failed"
)

// StateForOutcome classifies a finished transfer pass
func StateForOutcome(o TransferOutcome) IncubationState {
	switch {
	case o.Done():
		return IncubationStateAllSucceeded
	case len(o.Succeeded) == 0:
		return IncubationStateAllFailed
	default:
		return IncubationStatePartialRetryPending
	}
}

// IncubationEvent is published once an incubation notification was delivered
type IncubationEvent struct {
	EventID   string `json:"event_id"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}
