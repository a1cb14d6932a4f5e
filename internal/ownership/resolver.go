package ownership

import (
	"context"
	"fmt"
	"slices"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/logger"
	"github.com/cayc/incubator/internal/metadata"
	"github.com/cayc/incubator/internal/providers/ethereum"
	"github.com/cayc/incubator/internal/uri"
)

const defaultConcurrency = 8

// Resolver discovers the tokens of a collection currently owned by an account
//
//go:generate mockgen -source=resolver.go -destination=../mocks/ownership_resolver.go -package=mocks -mock_names=Resolver=MockOwnershipResolver
type Resolver interface {
	// Resolve returns the owned tokens, grouped per contract in discovery order.
	// Read failures on one contract or one token never fail the whole call.
	Resolve(ctx context.Context, collection domain.Collection, account string) ([]domain.Token, error)
}

// Config holds resolver settings
type Config struct {
	// Concurrency bounds the parallel ownerOf and metadata lookups
	Concurrency int
}

type resolver struct {
	ledger      ethereum.LedgerClient
	fetcher     metadata.Fetcher
	normalizer  *uri.Normalizer
	concurrency int
}

// NewResolver creates an ownership resolver
func NewResolver(ledger ethereum.LedgerClient, fetcher metadata.Fetcher, normalizer *uri.Normalizer, cfg Config) Resolver {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &resolver{
		ledger:      ledger,
		fetcher:     fetcher,
		normalizer:  normalizer,
		concurrency: concurrency,
	}
}

func (r *resolver) Resolve(ctx context.Context, collection domain.Collection, account string) ([]domain.Token, error) {
	if !domain.IsValidAddress(account) {
		return nil, fmt.Errorf("invalid account address: %q", account)
	}
	if !collection.Active() {
		return nil, domain.ErrCollectionInactive
	}

	pool := pond.NewResultPool[*domain.Token](r.concurrency, pond.WithContext(ctx))
	defer pool.StopAndWait()

	var tasks []pond.Result[*domain.Token]
	for _, source := range collection.Sources {
		if !domain.IsValidAddress(source.Address) {
			continue
		}

		candidates, err := r.candidates(ctx, source, account)
		if err != nil {
			logger.WarnCtx(ctx, "failed to fetch transfer events, skipping contract",
				zap.String("contract", source.Address),
				zap.Error(err))
			continue
		}

		logger.DebugCtx(ctx, "ownership candidates",
			zap.String("contract", source.Address),
			zap.Strings("tokenIds", candidates))

		for _, tokenID := range candidates {
			contract := source.Address
			tasks = append(tasks, pool.SubmitErr(func() (*domain.Token, error) {
				return r.resolveToken(ctx, contract, tokenID, account)
			}))
		}
	}

	var tokens []domain.Token
	for _, task := range tasks {
		token, err := task.Wait()
		if err != nil {
			logger.WarnCtx(ctx, "failed to resolve token, excluding it", zap.Error(err))
			continue
		}
		if token != nil {
			tokens = append(tokens, *token)
		}
	}

	logger.InfoCtx(ctx, "resolved owned tokens",
		zap.String("collection", string(collection.Key)),
		zap.String("account", account),
		zap.Int("count", len(tokens)))

	return tokens, nil
}

// candidates replays the transfer history: a transfer to the account adds the
// token, a transfer from it removes the token
func (r *resolver) candidates(ctx context.Context, source domain.ContractSource, account string) ([]string, error) {
	events, err := r.ledger.TransferEvents(ctx, source.Address, account)
	if err != nil {
		return nil, err
	}

	var order []string
	held := make(map[string]bool)
	for _, ev := range events {
		if domain.SameAddress(ev.To, account) && !held[ev.TokenID] {
			held[ev.TokenID] = true
			order = append(order, ev.TokenID)
		}
		if domain.SameAddress(ev.From, account) && held[ev.TokenID] {
			delete(held, ev.TokenID)
			order = slices.DeleteFunc(order, func(id string) bool { return id == ev.TokenID })
		}
	}

	ids := make([]string, 0, len(order))
	for _, id := range order {
		if source.Accepts(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// resolveToken confirms current ownership and loads the token's metadata.
// A nil token without error means the account no longer owns it.
func (r *resolver) resolveToken(ctx context.Context, contract, tokenID, account string) (*domain.Token, error) {
	owner, err := r.ledger.ERC721OwnerOf(ctx, contract, tokenID)
	if err != nil {
		return nil, fmt.Errorf("ownerOf %s #%s: %w", contract, tokenID, err)
	}
	if !domain.SameAddress(owner, account) {
		return nil, nil
	}

	tokenURI, err := r.ledger.ERC721TokenURI(ctx, contract, tokenID)
	if err != nil {
		return nil, fmt.Errorf("tokenURI %s #%s: %w", contract, tokenID, err)
	}

	return &domain.Token{
		TokenID:         tokenID,
		ContractAddress: contract,
		TokenURI:        r.normalizer.Normalize(tokenURI),
		Image:           r.fetcher.FetchImage(ctx, tokenURI),
	}, nil
}
