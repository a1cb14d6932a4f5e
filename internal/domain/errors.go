package domain

import "errors"

var (
	// ErrWalletUnavailable is returned when no wallet provider is configured
	ErrWalletUnavailable = errors.New("wallet provider unavailable")

	// ErrNoAccounts is returned when the wallet exposes no accounts
	ErrNoAccounts = errors.New("wallet has no accounts")

	// ErrCollectionNotFound is returned for an unknown collection key
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionInactive is returned when a collection has no contract to read from
	ErrCollectionInactive = errors.New("collection is inactive")

	// ErrSelectionFull is returned when a fourth token is selected
	ErrSelectionFull = errors.New("you can only select up to 3 NFTs")

	// ErrSelectionIncomplete is returned when incubation starts without exactly 3 tokens
	ErrSelectionIncomplete = errors.New("you must select exactly 3 NFTs before incubating")

	// ErrTokenNotDiscovered is returned when a selected token is not part of the discovered set
	ErrTokenNotDiscovered = errors.New("token not found among discovered tokens")

	// ErrTokenAmbiguous is returned when a token number exists in several contracts of a collection
	ErrTokenAmbiguous = errors.New("token number exists in several contracts")

	// ErrIncubationClosed is returned while the chamber is temporarily closed
	ErrIncubationClosed = errors.New("incubation is temporarily closed")

	// ErrConfirmationDeclined is returned when the user declines the irreversible-action prompt
	ErrConfirmationDeclined = errors.New("incubation not confirmed")

	// ErrWorkflowBusy is returned when a transfer workflow is already running
	ErrWorkflowBusy = errors.New("an incubation is already in progress")

	// ErrNoPendingRetry is returned when retry or cancel is invoked with no failed tokens
	ErrNoPendingRetry = errors.New("no pending retry")

	// ErrNotificationNotFound is returned when no relayed notification has the given event ID
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrTransactionReverted is returned when a mined transaction has a failed status
	ErrTransactionReverted = errors.New("transaction reverted")
)
