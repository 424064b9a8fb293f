// Package main runs the trading bot: the mempool sniper and the swing
// trader share one chain client, security analyzer, price oracle and
// position ledger, with Prometheus metrics on the side.
package main

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/chain"
	"evm-sniper-bot/internal/config"
	"evm-sniper-bot/internal/dex"
	"evm-sniper-bot/internal/ledger"
	"evm-sniper-bot/internal/notify"
	"evm-sniper-bot/internal/observability"
	"evm-sniper-bot/internal/pricing"
	"evm-sniper-bot/internal/security"
	"evm-sniper-bot/internal/sniper"
	"evm-sniper-bot/internal/storage"
	"evm-sniper-bot/internal/storage/memory"
	"evm-sniper-bot/internal/storage/migrations"
	"evm-sniper-bot/internal/storage/postgres"
	"evm-sniper-bot/internal/swing"
	"evm-sniper-bot/pkg/logger"
)

const (
	swapGasLimit    = 350_000
	healthInterval  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// lowBalanceWei triggers a warning when the wallet drops under 0.001 ETH.
var lowBalanceWei = big.NewInt(1_000_000_000_000_000)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("configuration invalid")
	}
	log := logger.New(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	capWei, _ := new(big.Float).Mul(
		big.NewFloat(cfg.GasPriceCapGwei), big.NewFloat(1e9),
	).Int(nil)
	client, err := chain.NewRPCClient(ctx, cfg.RPCURL, chain.RPCClientOptions{
		GasPriceCapWei:  capWei,
		GasPriceSpeedup: cfg.GasPriceSpeedup,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("connecting to RPC endpoint")
	}
	defer client.Close()

	mempoolCfg := chain.DefaultMempoolConfig()
	stream, err := chain.NewMempoolStream(ctx, cfg.WebsocketURL, &mempoolCfg, log)
	if err != nil {
		log.WithError(err).Fatal("subscribing to mempool")
	}
	defer stream.Close()

	var journal storage.TradeJournal
	if cfg.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			log.WithError(err).Fatal("connecting to postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgres(ctx, pool); err != nil {
			log.WithError(err).Fatal("applying postgres migrations")
		}
		journal = postgres.NewTradeJournal(pool)
		log.Info("trade journal enabled")
	}
	book := ledger.New(memory.NewPositionStore(), journal, cfg.StartingBalanceUSD, cfg.DryRun, log)

	quoter, err := dex.NewQuoter(client, config.DefaultRouters, log)
	if err != nil {
		log.WithError(err).Fatal("building DEX quoter")
	}
	executor, err := buildExecutor(cfg, client, quoter, log)
	if err != nil {
		log.WithError(err).Fatal("building swap executor")
	}

	analyzer := buildAnalyzer(cfg, client, log)
	oracle := buildOracle(cfg, client, log)
	notifier := buildNotifier(cfg, log)

	resolver := sniper.NewTokenResolver(client, config.WETHAddress,
		cfg.ExplorerAPIURL, cfg.ExplorerAPIKey, cfg.Security.CheckTimeout, log)
	sniperStrategy := sniper.New(cfg.Sniper, cfg.Security.RejectThreshold,
		config.DefaultRouters, config.WETHAddress, sniper.Deps{
			Client:   client,
			Resolver: resolver,
			Analyzer: analyzer,
			Oracle:   oracle,
			Ledger:   book,
			Executor: executor,
			Notifier: notifier,
			Log:      log.WithField("strategy", "sniper"),
		})
	swingStrategy := swing.New(cfg.Swing, swing.Deps{
		Oracle:   oracle,
		Ledger:   book,
		Executor: executor,
		Notifier: notifier,
		Log:      log.WithField("strategy", "swing"),
	})

	srv := serveMetrics(cfg.MetricsAddr, log)

	var wg sync.WaitGroup
	runLoop(ctx, &wg, log, "mempool", func(ctx context.Context) {
		sniperStrategy.ConsumeMempool(ctx, stream.Hashes())
	})
	runLoop(ctx, &wg, log, "sniper_monitor", sniperStrategy.MonitorPositions)
	runLoop(ctx, &wg, log, "sniper_prune", sniperStrategy.PruneOpportunities)
	runLoop(ctx, &wg, log, "swing_poll", swingStrategy.PollPrices)
	runLoop(ctx, &wg, log, "swing_signals", swingStrategy.RunSignals)
	runLoop(ctx, &wg, log, "swing_monitor", swingStrategy.MonitorPositions)
	runLoop(ctx, &wg, log, "swing_rebalance", swingStrategy.Rebalance)
	runLoop(ctx, &wg, log, "health", func(ctx context.Context) {
		healthLoop(ctx, client, cfg, log)
	})

	log.WithFields(logrus.Fields{
		"dry_run":  cfg.DryRun,
		"chain_id": config.BaseChainID,
		"balance":  cfg.StartingBalanceUSD,
	}).Info("bot started")
	notifier.Notify(notify.CategorySystem, "Bot started")

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics server shutdown")
	}
	wg.Wait()
	log.Info("bot stopped")
}

// runLoop runs fn until ctx is done, restarting it after a recovered
// panic so one bad token cannot take the whole bot down.
func runLoop(ctx context.Context, wg *sync.WaitGroup, log logrus.FieldLogger, name string, fn func(context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithField("loop", name).Errorf("panic recovered: %v", r)
					}
				}()
				fn(ctx)
			}()
		}
	}()
}

func buildExecutor(cfg *config.Config, client chain.Client, quoter *dex.Quoter, log logrus.FieldLogger) (dex.Executor, error) {
	if cfg.DryRun {
		log.Info("dry-run mode: swaps are simulated")
		return dex.NewDryRunExecutor(quoter, config.WETHAddress, log), nil
	}
	wallet, err := chain.NewWallet(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	log.WithField("wallet", wallet.Address()).Info("live trading enabled")
	return dex.NewLiveExecutor(client, wallet, quoter, config.WETHAddress, swapGasLimit, log)
}

func buildAnalyzer(cfg *config.Config, client chain.Client, log logrus.FieldLogger) *security.Analyzer {
	checks := []security.Check{
		security.NewHoneypotCheck(cfg.HoneypotAPIURL, cfg.SnifferAPIURL, cfg.SnifferAPIKey,
			config.BaseChainID, cfg.Security.CheckTimeout),
		security.NewBytecodeCheck(client),
		security.NewVerificationCheck(cfg.ExplorerAPIURL, cfg.ExplorerAPIKey, cfg.Security.CheckTimeout),
		security.NewActivityCheck(cfg.ExplorerAPIURL, cfg.ExplorerAPIKey, cfg.Security.CheckTimeout),
		security.NewLiquidityLockCheck(client),
	}
	return security.NewAnalyzer(checks, cfg.Security.CacheTTL, log)
}

func buildOracle(cfg *config.Config, client chain.Client, log logrus.FieldLogger) *pricing.Oracle {
	var dexSources []pricing.DexSource
	for name, addr := range config.DefaultRouters {
		source, err := pricing.NewRouterSource(name, addr, config.WETHAddress, client)
		if err != nil {
			log.WithError(err).WithField("router", name).Warn("router price source skipped")
			continue
		}
		dexSources = append(dexSources, source)
	}

	fiat := []pricing.FiatSource{
		pricing.NewCoinGeckoSource("", cfg.Pricing.RequestTimeout),
	}
	if cfg.Pricing.CoinMarketCapKey != "" {
		fiat = append(fiat, pricing.NewCoinMarketCapSource("", cfg.Pricing.CoinMarketCapKey, cfg.Pricing.RequestTimeout))
	}

	return pricing.NewOracle(dexSources, fiat, cfg.Pricing.CacheTTL, cfg.Pricing.ETHFallbackUSD, log)
}

func buildNotifier(cfg *config.Config, log logrus.FieldLogger) notify.Notifier {
	var next notify.Notifier = notify.LogNotifier{Log: log}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
		if err != nil {
			log.WithError(err).Warn("telegram unavailable, notifications degrade to logging")
		} else {
			next = tg
		}
	}
	return notify.NewThrottled(next, cfg.NotifyCooldown)
}

func serveMetrics(addr string, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	log.WithField("addr", addr).Info("metrics server listening")
	return srv
}

// healthLoop probes the RPC endpoint and the wallet balance.
func healthLoop(ctx context.Context, client chain.Client, cfg *config.Config, log logrus.FieldLogger) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			observability.AddUptime(now.Sub(last).Seconds())
			last = now

			_, err := client.BlockNumber(ctx)
			observability.SetRPCHealthy(err == nil)
			if err != nil {
				log.WithError(err).Warn("RPC liveness probe failed")
				continue
			}

			if cfg.DryRun || cfg.WalletAddress == "" {
				continue
			}
			balance, err := client.NativeBalance(ctx, cfg.WalletAddress)
			if err != nil {
				continue
			}
			if balance.Cmp(lowBalanceWei) < 0 {
				log.WithField("balance_wei", balance.String()).Warn("wallet balance low")
			}
		}
	}
}
