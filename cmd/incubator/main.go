package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cayc/incubator/internal/adapter"
	"github.com/cayc/incubator/internal/config"
	"github.com/cayc/incubator/internal/console"
	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/incubation"
	"github.com/cayc/incubator/internal/logger"
	"github.com/cayc/incubator/internal/metadata"
	"github.com/cayc/incubator/internal/notifier"
	"github.com/cayc/incubator/internal/ownership"
	"github.com/cayc/incubator/internal/providers/ethereum"
	"github.com/cayc/incubator/internal/session"
	"github.com/cayc/incubator/internal/uri"
	"github.com/cayc/incubator/internal/wallet"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to configuration file",
	}
	envFlag = &cli.StringFlag{
		Name:  "env",
		Value: "config/",
		Usage: "Path to environment files",
	}
	collectionFlag = &cli.StringFlag{
		Name:     "collection",
		Aliases:  []string{"c"},
		Usage:    "Collection to open: rarity, gorilla or silverback",
		Required: true,
	}
	tokensFlag = &cli.StringFlag{
		Name:    "tokens",
		Aliases: []string{"t"},
		Usage:   "Comma separated token IDs (or contract:id) to incubate, prompts interactively when empty",
	}
)

func main() {
	app := &cli.App{
		Name:  "incubator",
		Usage: "CAYC incubation chamber",
		Flags: []cli.Flag{configFlag, envFlag},
		Commands: []*cli.Command{
			{
				Name:   "collections",
				Usage:  "List the incubation collections",
				Action: runCollections,
			},
			{
				Name:   "tokens",
				Usage:  "List the collection tokens owned by the connected wallet",
				Flags:  []cli.Flag{collectionFlag},
				Action: runTokens,
			},
			{
				Name:   "incubate",
				Usage:  "Move three tokens to the staging wallet and notify the operators",
				Flags:  []cli.Flag{collectionFlag, tokensFlag},
				Action: runIncubate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// incubator bundles everything a command needs, close releases it
type incubator struct {
	app     *console.App
	term    *console.Terminal
	watcher *wallet.Watcher
	wallet  wallet.Provider
	close   func()
}

func setup(ctx context.Context, cCtx *cli.Context) (*incubator, error) {
	config.ChdirRepoRoot()
	cfg, err := config.LoadIncubatorConfig(cCtx.String(configFlag.Name), cCtx.String(envFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Console:         true,
		Tags: map[string]string{
			"service": "incubator",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum node: %w", err)
	}
	ledger := ethereum.NewClient(ethClient, ethereum.Config{
		ReceiptPollInterval: cfg.Ethereum.ReceiptPollInterval,
		ReceiptTimeout:      cfg.Ethereum.ReceiptTimeout,
	})
	logger.DebugCtx(ctx, "Connected to ethereum node", zap.String("rpc_url", cfg.Ethereum.RPCURL))

	term := console.NewTerminal(os.Stdin, os.Stdout)

	provider, err := wallet.Open(wallet.Config{
		KeystoreDir:    cfg.Wallet.KeystoreDir,
		SignerEndpoint: cfg.Wallet.SignerEndpoint,
	}, term)
	if err != nil && !errors.Is(err, domain.ErrWalletUnavailable) {
		ledger.Close()
		return nil, fmt.Errorf("failed to open wallet: %w", err)
	}
	if err != nil {
		logger.WarnCtx(ctx, "No wallet configured", zap.Error(err))
	}

	jsonAdapter := adapter.NewJSON()
	httpClient := adapter.NewHTTPClient(cfg.Notifier.HTTPTimeout)
	normalizer := uri.NewNormalizer(uri.Config{
		IPFSGateway:    cfg.URI.IPFSGateway,
		ArweaveGateway: cfg.URI.ArweaveGateway,
	})
	resolver := ownership.NewResolver(ledger, metadata.NewFetcher(httpClient, jsonAdapter, normalizer), normalizer, ownership.Config{
		Concurrency: cfg.Ownership.Concurrency,
	})
	n := notifier.NewNotifier(httpClient, jsonAdapter, notifier.Config{
		Endpoint:    cfg.Notifier.Endpoint,
		Recipient:   cfg.Notifier.Recipient,
		MaxAttempts: cfg.Notifier.MaxAttempts,
		RetryDelay:  cfg.Notifier.RetryDelay,
	})

	var signer ethereum.TxSigner
	var watcher *wallet.Watcher
	if provider != nil {
		signer = provider
		watcher = wallet.NewWatcher(provider, ledger, adapter.NewClock(), wallet.WatcherConfig{
			Interval: cfg.Wallet.WatchInterval,
			// Keystores push their own account events
			WatchAccounts: cfg.Wallet.KeystoreDir == "",
		})
	}
	orchestrator := incubation.NewOrchestrator(ledger, signer, n, term, incubation.Config{Closed: cfg.Closed})

	store := session.NewStore()
	unfollow := term.Follow(store)

	return &incubator{
		app:     console.NewApp(term, store, provider, ledger, resolver, orchestrator),
		term:    term,
		watcher: watcher,
		wallet:  provider,
		close: func() {
			unfollow()
			if provider != nil {
				provider.Close()
			}
			ledger.Close()
			logger.Flush(2 * time.Second)
		},
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCollections(cCtx *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	inc, err := setup(ctx, cCtx)
	if err != nil {
		return err
	}
	defer inc.close()

	inc.app.Menu()
	return nil
}

// open connects the wallet and loads the owned tokens of the requested collection
func (inc *incubator) open(ctx context.Context, key string) error {
	if err := inc.app.Connect(ctx); err != nil {
		return err
	}
	if _, err := inc.app.ChooseCollection(domain.CollectionKey(strings.ToLower(key))); err != nil {
		return err
	}
	return inc.app.LoadTokens(ctx)
}

func runTokens(cCtx *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	inc, err := setup(ctx, cCtx)
	if err != nil {
		return err
	}
	defer inc.close()

	if err := inc.open(ctx, cCtx.String(collectionFlag.Name)); err != nil {
		return err
	}
	inc.term.RenderTokens(inc.app.State())
	return nil
}

func runIncubate(cCtx *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	inc, err := setup(ctx, cCtx)
	if err != nil {
		return err
	}
	defer inc.close()

	if inc.watcher != nil {
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go inc.watcher.Run(watchCtx)
		go inc.app.Watch(watchCtx, inc.wallet, inc.watcher)
	}

	inc.app.Menu()
	if err := inc.open(ctx, cCtx.String(collectionFlag.Name)); err != nil {
		return err
	}

	if ids := cCtx.String(tokensFlag.Name); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if err := inc.app.Toggle(strings.TrimSpace(id)); err != nil {
				return err
			}
		}
		inc.term.RenderTokens(inc.app.State())
	} else {
		proceed, err := inc.app.ChooseTokens(ctx)
		if err != nil {
			return err
		}
		if !proceed {
			return nil
		}
	}

	err = inc.app.Incubate(ctx)
	if errors.Is(err, domain.ErrConfirmationDeclined) {
		inc.term.Printf("Incubation canceled.\n")
		return nil
	}
	return err
}
