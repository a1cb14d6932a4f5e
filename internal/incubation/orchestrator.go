package incubation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/logger"
	"github.com/cayc/incubator/internal/notifier"
	"github.com/cayc/incubator/internal/providers/ethereum"
)

// NotificationFailedNote is appended to the status when the report could not be delivered
const NotificationFailedNote = "Note: The transfers were successful, but the email notification failed to send. Please contact admins."

// Prompt is shown to the wallet owner before any transfer is attempted
type Prompt struct {
	Collection domain.Collection
	TokenIDs   []string
	Staging    string
}

// Confirmer asks the owner to acknowledge the irreversible transfer.
// It blocks until the owner answers.
//
//go:generate mockgen -source=orchestrator.go -destination=../mocks/confirmer.go -package=mocks -mock_names=Confirmer=MockConfirmer
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) (bool, error)
}

// Config holds orchestrator settings
type Config struct {
	// Closed refuses every new incubation
	Closed bool
	// StagingAddress overrides domain.StagingAddress, used against test networks
	StagingAddress string
}

// Result is the outcome of a transfer pass
type Result struct {
	State   domain.IncubationState
	Outcome domain.TransferOutcome
	Message string
	// NotificationFailed is set when the operators could not be notified
	NotificationFailed bool
}

// pendingWorkflow is a partial transfer waiting for retry or cancel
type pendingWorkflow struct {
	account    string
	collection domain.Collection
	// order is the owner's selection order, reports list tokens in it
	order      []domain.TokenRef
	outcome    domain.TransferOutcome
}

// Orchestrator runs the transfer-to-staging workflow one token at a time
type Orchestrator struct {
	ledger    ethereum.LedgerClient
	signer    ethereum.TxSigner
	notifier  notifier.Notifier
	confirmer Confirmer
	staging   string
	closed    bool

	busy    atomic.Bool
	mu      sync.Mutex
	pending *pendingWorkflow
}

// NewOrchestrator creates a transfer orchestrator
func NewOrchestrator(ledger ethereum.LedgerClient, signer ethereum.TxSigner, n notifier.Notifier, confirmer Confirmer, cfg Config) *Orchestrator {
	staging := cfg.StagingAddress
	if staging == "" {
		staging = domain.StagingAddress
	}
	return &Orchestrator{
		ledger:    ledger,
		signer:    signer,
		notifier:  n,
		confirmer: confirmer,
		staging:   staging,
		closed:    cfg.Closed,
	}
}

// Closed reports whether new incubations are refused
func (o *Orchestrator) Closed() bool {
	return o.closed
}

// Pending returns the outcome waiting for retry, if any
func (o *Orchestrator) Pending() (domain.TransferOutcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return domain.TransferOutcome{}, false
	}
	return o.pending.outcome.Clone(), true
}

// Incubate confirms and transfers exactly three discovered tokens to the staging address
func (o *Orchestrator) Incubate(ctx context.Context, account string, collection domain.Collection, selection domain.Selection, tokens []domain.Token) (Result, error) {
	if o.closed {
		return Result{}, domain.ErrIncubationClosed
	}
	if !selection.Complete() {
		return Result{}, domain.ErrSelectionIncomplete
	}
	if !o.busy.CompareAndSwap(false, true) {
		return Result{}, domain.ErrWorkflowBusy
	}
	defer o.busy.Store(false)

	o.mu.Lock()
	hasPending := o.pending != nil
	o.mu.Unlock()
	if hasPending {
		return Result{}, domain.ErrWorkflowBusy
	}

	confirmed, err := o.confirmer.Confirm(ctx, Prompt{
		Collection: collection,
		TokenIDs:   selection.IDs(),
		Staging:    o.staging,
	})
	if err != nil {
		return Result{}, fmt.Errorf("confirmation failed: %w", err)
	}
	if !confirmed {
		return Result{}, domain.ErrConfirmationDeclined
	}

	// Once confirmed the pass runs to completion
	runCtx := context.WithoutCancel(ctx)

	logger.InfoCtx(runCtx, "incubation started",
		zap.String("collection", string(collection.Key)),
		zap.String("account", account),
		zap.Strings("tokenIds", selection.IDs()))

	order := selection.Refs()
	outcome := o.transferAll(runCtx, account, order, tokens, domain.TransferOutcome{})
	return o.finish(runCtx, account, collection, order, outcome, false), nil
}

// Retry transfers the failed subset of the pending workflow again
func (o *Orchestrator) Retry(ctx context.Context) (Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Result{}, domain.ErrWorkflowBusy
	}
	defer o.busy.Store(false)

	o.mu.Lock()
	pending := o.pending
	o.mu.Unlock()
	if pending == nil || pending.outcome.Done() {
		return Result{}, domain.ErrNoPendingRetry
	}

	runCtx := context.WithoutCancel(ctx)
	logger.InfoCtx(runCtx, "retrying failed transfers", zap.Strings("tokenIds", domain.TokenIDs(pending.outcome.Failed)))

	carried := domain.TransferOutcome{Succeeded: pending.outcome.Clone().Succeeded}
	outcome := o.transferAll(runCtx, pending.account, pending.outcome.Failed, nil, carried)
	return o.finish(runCtx, pending.account, pending.collection, pending.order, outcome, true), nil
}

// CancelRetry abandons the pending workflow and returns the final summary
func (o *Orchestrator) CancelRetry() (Result, error) {
	if o.busy.Load() {
		return Result{}, domain.ErrWorkflowBusy
	}

	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	if pending == nil {
		return Result{}, domain.ErrNoPendingRetry
	}

	return Result{
		State:   domain.IncubationStateIdle,
		Outcome: pending.outcome.Clone(),
		Message: CancelSummary(pending.outcome),
	}, nil
}

// transferAll transfers refs strictly one after another. When tokens is non-nil
// every ref must belong to the discovered set.
func (o *Orchestrator) transferAll(ctx context.Context, account string, refs []domain.TokenRef, tokens []domain.Token, outcome domain.TransferOutcome) domain.TransferOutcome {
	for _, ref := range refs {
		if tokens != nil && !discovered(tokens, ref) {
			logger.WarnCtx(ctx, "selected token was not discovered", zap.String("tokenId", ref.TokenID))
			outcome.Failed = append(outcome.Failed, ref)
			continue
		}

		if o.transferOne(ctx, account, ref) {
			outcome.Succeeded = append(outcome.Succeeded, ref)
		} else {
			outcome.Failed = append(outcome.Failed, ref)
		}
	}
	return outcome
}

// transferOne reports whether the token ended up with the staging address
func (o *Orchestrator) transferOne(ctx context.Context, account string, ref domain.TokenRef) bool {
	txHash, err := o.ledger.ERC721TransferFrom(ctx, o.signer, ref.ContractAddress, account, o.staging, ref.TokenID)
	if err == nil {
		logger.InfoCtx(ctx, "token transferred",
			zap.String("contract", ref.ContractAddress),
			zap.String("tokenId", ref.TokenID),
			zap.String("txHash", txHash))
		return true
	}

	logger.WarnCtx(ctx, "transfer reported an error, verifying ownership",
		zap.String("contract", ref.ContractAddress),
		zap.String("tokenId", ref.TokenID),
		zap.Error(err))

	// The transaction may have landed even though the wallet or node reported a failure
	owner, verr := o.ledger.ERC721OwnerOf(ctx, ref.ContractAddress, ref.TokenID)
	if verr != nil {
		logger.WarnCtx(ctx, "failed to verify transfer",
			zap.String("tokenId", ref.TokenID),
			zap.Error(verr))
		return false
	}
	if domain.SameAddress(owner, o.staging) {
		logger.InfoCtx(ctx, "token already with staging despite error", zap.String("tokenId", ref.TokenID))
		return true
	}
	return false
}

func (o *Orchestrator) finish(ctx context.Context, account string, collection domain.Collection, order []domain.TokenRef, outcome domain.TransferOutcome, retried bool) Result {
	outcome = outcome.Ordered(order)
	state := domain.StateForOutcome(outcome)
	result := Result{State: state, Outcome: outcome.Clone()}

	if state != domain.IncubationStateAllSucceeded {
		o.mu.Lock()
		o.pending = &pendingWorkflow{account: account, collection: collection, order: order, outcome: outcome.Clone()}
		o.mu.Unlock()
		result.Message = RetrySummary(outcome)
		return result
	}

	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()

	result.Message = SuccessMessage(outcome, retried)

	err := o.notifier.Notify(ctx, notifier.Report{
		TypeLabel: collection.TypeLabel,
		Account:   account,
		TokenIDs:  domain.TokenIDs(outcome.Succeeded),
	})
	if err != nil {
		result.NotificationFailed = true
	}

	return result
}

func discovered(tokens []domain.Token, ref domain.TokenRef) bool {
	for _, t := range tokens {
		if t.Ref().Equal(ref) {
			return true
		}
	}
	return false
}

// SuccessMessage is the status shown once every token reached the staging address
func SuccessMessage(outcome domain.TransferOutcome, retried bool) string {
	ids := strings.Join(domain.TokenIDs(outcome.Succeeded), ", ")
	if retried {
		return "All transfers succeeded after retry!\nTransferred token IDs: " + ids
	}
	return "All selected NFTs transferred successfully!\nTransferred token IDs: " + ids
}

// RetrySummary describes a partial outcome while a retry is offered
func RetrySummary(outcome domain.TransferOutcome) string {
	return fmt.Sprintf("Some transfers failed.\nSucceeded: %s\nFailed: %s",
		strings.Join(domain.TokenIDs(outcome.Succeeded), ", "),
		strings.Join(domain.TokenIDs(outcome.Failed), ", "))
}

// CancelSummary is the final status after the owner declines to retry
func CancelSummary(outcome domain.TransferOutcome) string {
	return fmt.Sprintf("Transfer Summary:\nSucceeded: %s\nFailed: %s\n\nTransfers failed. Please ensure you have enough ETH for gas fees or contact support for assistance.",
		strings.Join(domain.TokenIDs(outcome.Succeeded), ", "),
		strings.Join(domain.TokenIDs(outcome.Failed), ", "))
}
