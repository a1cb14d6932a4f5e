package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/term"

	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/incubation"
)

// Terminal is the interactive surface of the incubator. It renders session
// snapshots and collects the owner's answers, one prompt at a time.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	// fd is the terminal file descriptor, -1 when input is not a terminal
	fd int

	mu sync.Mutex
}

// NewTerminal creates a terminal. Passphrases are read without echo when in is a terminal.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{
		in:  bufio.NewReader(in),
		out: out,
		fd:  -1,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
	}
	return t
}

// Printf writes formatted output
func (t *Terminal) Printf(format string, args ...interface{}) {
	fmt.Fprintf(t.out, format, args...)
}

// readLine reads one line and respects context cancellation
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	inputCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		input, err := t.in.ReadString('\n')
		if err != nil && (err != io.EOF || input == "") {
			errCh <- err
			return
		}
		inputCh <- input
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case input := <-inputCh:
		return strings.TrimSpace(input), nil
	case err := <-errCh:
		return "", err
	}
}

// readSecret reads a line without echo on a terminal
func (t *Terminal) readSecret(ctx context.Context) (string, error) {
	if t.fd < 0 {
		return t.readLine(ctx)
	}

	type result struct {
		secret []byte
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		secret, err := term.ReadPassword(t.fd)
		ch <- result{secret: secret, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		fmt.Fprintln(t.out)
		if r.err != nil {
			return "", r.err
		}
		return string(r.secret), nil
	}
}

// Ask prints the question and returns the trimmed answer
func (t *Terminal) Ask(ctx context.Context, question string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprint(t.out, question)
	return t.readLine(ctx)
}

// Confirm shows the incubation steps and asks for the irreversible go-ahead
func (t *Terminal) Confirm(ctx context.Context, prompt incubation.Prompt) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\n%s\n\n", prompt.Collection.Heading)
	fmt.Fprintln(t.out, "STEPS TO INCUBATE")
	fmt.Fprintf(t.out, "1) Your selected 3 NFTs (%s) will be moved to a staging wallet (%s)\n",
		strings.Join(prompt.TokenIDs, ", "), prompt.Staging)
	fmt.Fprintln(t.out, "2) An Incubated NFT will be generated within 24hrs and sent to your wallet")
	fmt.Fprintln(t.out, "3) The staging wallet holding the 3 NFTs will be burnt")
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, "The process will incur gas fees and is irreversible.")
	fmt.Fprint(t.out, "Type OK if you wish to continue or CANCEL to stop now: ")

	answer, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

// Passphrase asks the account owner to approve one transaction
func (t *Terminal) Passphrase(ctx context.Context, account string, tx *types.Transaction) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "Approve transaction from %s\n", account)
	if tx.To() != nil {
		fmt.Fprintf(t.out, "  contract:  %s\n", tx.To().Hex())
	}
	fmt.Fprintf(t.out, "  nonce:     %d\n", tx.Nonce())
	fmt.Fprintf(t.out, "  gas limit: %d\n", tx.Gas())
	fmt.Fprintf(t.out, "  max fee:   %s ETH\n", formatEther(new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(tx.Gas()))))
	fmt.Fprint(t.out, "Passphrase (leave empty to reject): ")

	secret, err := t.readSecret(ctx)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", domain.ErrConfirmationDeclined
	}
	return secret, nil
}

// AskRetry shows a partial outcome and asks whether the failed tokens should be tried again
func (t *Terminal) AskRetry(ctx context.Context, outcome domain.TransferOutcome) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, "Transfer Summary")
	fmt.Fprintf(t.out, "The following token IDs were successfully transferred: %s.\n\n",
		strings.Join(domain.TokenIDs(outcome.Succeeded), ", "))
	fmt.Fprintf(t.out, "The following token IDs failed to transfer: %s.\n\n",
		strings.Join(domain.TokenIDs(outcome.Failed), ", "))
	fmt.Fprintln(t.out, "Please ensure you have sufficient ETH to cover gas fees in your wallet.")
	fmt.Fprint(t.out, "Would you like to retry transferring these failed NFTs? [retry/cancel]: ")

	answer, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "retry" || answer == "r" || isYes(answer), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "ok", "y", "yes":
		return true
	default:
		return false
	}
}

// formatEther renders wei with up to six decimals
func formatEther(wei *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	return strings.TrimRight(strings.TrimRight(f.Text('f', 6), "0"), ".")
}
