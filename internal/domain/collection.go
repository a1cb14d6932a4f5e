package domain

import (
	"math/big"
)

// TokenRange is an inclusive token number filter
type TokenRange struct {
	Min int64
	Max int64
}

// Contains reports whether the token number lies within the range
func (r TokenRange) Contains(tokenID *big.Int) bool {
	if tokenID == nil {
		return false
	}
	return tokenID.Cmp(big.NewInt(r.Min)) >= 0 && tokenID.Cmp(big.NewInt(r.Max)) <= 0
}

// ContractSource is one contract contributing tokens to a collection
type ContractSource struct {
	Address string
	// Range restricts the contract to a token number window, nil accepts every token
	Range *TokenRange
}

// Accepts applies the source's range filter to a decimal token number
func (s ContractSource) Accepts(tokenID string) bool {
	if s.Range == nil {
		return true
	}
	n, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return false
	}
	return s.Range.Contains(n)
}

// CollectionKey identifies one of the incubation collections
type CollectionKey string

const (
	CollectionRarity     CollectionKey = "rarity"
	CollectionGorilla    CollectionKey = "gorilla"
	CollectionSilverback CollectionKey = "silverback"
)

// Collection is a fixed group of tokens offered for incubation
type Collection struct {
	Key         CollectionKey
	Heading     string
	ButtonLabel string
	// TypeLabel names the incubated ape in notifications
	TypeLabel string
	Sources   []ContractSource
}

// Active reports whether the collection has at least one valid contract
func (c Collection) Active() bool {
	for _, s := range c.Sources {
		if IsValidAddress(s.Address) {
			return true
		}
	}
	return false
}

const (
	rarityContract     = "0xfd39CD1F87a237C628C42c0Efde88AC02654B775"
	gorillaContract    = "0x0cb81977a2147523468ca0b56cba93fa5c5caf67"
	silverbackContract = "0xdb5c9ac6089d6cca205f54ee19bd151e419cac63"
)

var collections = []Collection{
	{
		Key:         CollectionRarity,
		Heading:     "CAYC RARITY INCUBATION CHAMBER",
		ButtonLabel: "INCUBATE A RARITY",
		TypeLabel:   "RARITY",
		Sources: []ContractSource{
			{Address: rarityContract},
		},
	},
	{
		Key:         CollectionGorilla,
		Heading:     "CAYC GORILLA INCUBATION CHAMBER",
		ButtonLabel: "INCUBATE A GORILLA",
		TypeLabel:   "GORILLA",
		// The main contract is used fully, the secondary one only for a token window
		Sources: []ContractSource{
			{Address: gorillaContract},
			{Address: silverbackContract, Range: &TokenRange{Min: 1000, Max: 3000}},
		},
	},
	{
		Key:         CollectionSilverback,
		Heading:     "SILVERBACK INCUBATION CHAMBER",
		ButtonLabel: "INCUBATE A SILVERBACK",
		TypeLabel:   "SILVERBACK",
		Sources: []ContractSource{
			{Address: silverbackContract, Range: &TokenRange{Min: 3000, Max: 4000}},
		},
	},
}

// Collections returns the incubation collections in menu order
func Collections() []Collection {
	out := make([]Collection, len(collections))
	copy(out, collections)
	return out
}

// CollectionByKey looks up a collection
func CollectionByKey(key CollectionKey) (Collection, error) {
	for _, c := range collections {
		if c.Key == key {
			return c, nil
		}
	}
	return Collection{}, ErrCollectionNotFound
}
