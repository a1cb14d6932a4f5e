package console

import (
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/session"
)

const (
	title        = "CAYC INCUBATOR"
	closedBanner = "TEMPORARILY CLOSED"
)

// RenderMenu prints the incubation menu
func (t *Terminal) RenderMenu(collections []domain.Collection, closed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "%s\n\n", title)
	if closed {
		fmt.Fprintf(t.out, "%s\n\n", closedBanner)
	}

	table := tablewriter.NewWriter(t.out)
	table.SetHeader([]string{"Collection", "Incubation"})
	table.SetAutoWrapText(false)
	for _, c := range collections {
		label := c.ButtonLabel
		if !c.Active() {
			label += " (unavailable)"
		}
		table.Append([]string{string(c.Key), label})
	}
	table.Render()
}

// RenderTokens prints the discovered tokens of the chosen collection with their selection marks
func (t *Terminal) RenderTokens(s session.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Collection != nil {
		fmt.Fprintf(t.out, "%s\n", s.Collection.Heading)
	}
	if s.Connected() {
		fmt.Fprintf(t.out, "Connected Wallet: %s\n", s.Account)
	}

	switch {
	case s.Loading:
		fmt.Fprintln(t.out, "Reading NFTs available...")
		return
	case s.LoadErr != nil:
		fmt.Fprintln(t.out, "An error occurred while fetching NFTs. Please try again later.")
		return
	case len(s.Tokens) == 0 && s.Connected():
		fmt.Fprintln(t.out, "No NFTs found for this wallet.")
		return
	case len(s.Tokens) == 0:
		return
	}

	table := tablewriter.NewWriter(t.out)
	table.SetHeader([]string{"Select", "Token ID", "Contract", "Token URI", "Image"})
	table.SetAutoWrapText(false)
	for _, tok := range s.Tokens {
		mark := "[ ]"
		if s.Selection.Contains(tok.Ref()) {
			mark = "[x]"
		}
		tokenURI := tok.TokenURI
		if tokenURI == "" {
			tokenURI = "No URI"
		}
		image := tok.Image
		if image == "" {
			image = "No Image"
		}
		table.Append([]string{mark, tok.TokenID, tok.ContractAddress, tokenURI, image})
	}
	table.Render()
}

// Follow prints alerts and status messages as the session changes and returns the unsubscribe function
func (t *Terminal) Follow(store *session.Store) func() {
	var lastAlert, lastStatus string
	var lastState domain.IncubationState

	return store.Subscribe(func(s session.State) {
		t.mu.Lock()
		defer t.mu.Unlock()

		if s.Alert != "" && s.Alert != lastAlert {
			fmt.Fprintf(t.out, "\n! %s\n", s.Alert)
		}
		lastAlert = s.Alert

		if s.IncubationState == domain.IncubationStateTransferring && lastState != domain.IncubationStateTransferring {
			fmt.Fprintln(t.out, "\nTransferring your selected NFTs...")
			fmt.Fprintf(t.out, "Please confirm each transaction in your wallet to transfer the tokens to %s.\n", domain.StagingAddress)
		}
		lastState = s.IncubationState

		if s.Status != "" && s.Status != lastStatus && !s.RetryPending() {
			fmt.Fprintf(t.out, "\nTransfer Status\n%s\n", s.Status)
		}
		lastStatus = s.Status
	})
}
