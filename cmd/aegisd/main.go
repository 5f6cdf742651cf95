package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"AegisVault/internal/api"
	"AegisVault/internal/audit"
	"AegisVault/internal/auth"
	"AegisVault/internal/config"
	"AegisVault/internal/market"
	marketeth "AegisVault/internal/market/ethereum"
	"AegisVault/internal/observability/alerting"
	"AegisVault/internal/vault"
	"AegisVault/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("aegisd failed: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("AEGIS_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "aegisd.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level: cfg.Logging.Level,
		Audit: logger.AuditConfig{
			Enabled:    !cfg.Logging.DisableAudit,
			Path:       cfg.Logging.AuditFile,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	journal, err := buildJournal(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	params, err := buildParams(cfg.Vault)
	if err != nil {
		return err
	}

	opts := []vault.Option{
		WithAlertsFrom(cfg.Alerts),
	}
	if cfg.Vault.VaultAddress != "" {
		opts = append(opts, vault.WithAddress(common.HexToAddress(cfg.Vault.VaultAddress)))
	}

	var venueClient *marketeth.Client
	if cfg.Venue.Name != "" {
		defs, err := market.LoadVenues(cfg.Venue.DefinitionsFile)
		if err != nil {
			return err
		}
		venue, err := defs.Venue(cfg.Venue.Name)
		if err != nil {
			return err
		}
		privateKey := ""
		if cfg.Venue.PrivateKeyEnv != "" {
			privateKey = os.Getenv(cfg.Venue.PrivateKeyEnv)
		}
		venueClient, err = marketeth.Dial(ctx, venue.RPCURL, privateKey)
		if err != nil {
			return fmt.Errorf("connect venue %s: %w", cfg.Venue.Name, err)
		}
		defer venueClient.Close()

		router, err := marketeth.NewRouter(venueClient, common.HexToAddress(venue.Router))
		if err != nil {
			return err
		}
		oracle, err := marketeth.NewChainlinkOracle(ctx, venueClient, common.HexToAddress(venue.Oracle))
		if err != nil {
			return err
		}
		token, err := marketeth.NewERC20(venueClient, common.HexToAddress(venue.Asset))
		if err != nil {
			return err
		}
		opts = append(opts,
			vault.WithRouter(router),
			vault.WithOracle(oracle),
			vault.WithToken(token),
		)
		if cfg.Vault.VaultAddress == "" {
			opts = append(opts, vault.WithAddress(venueClient.SignerAddress()))
		}
	}

	v, err := vault.New(params, journal, opts...)
	if err != nil {
		return err
	}

	authSvc := buildAuth(cfg.Auth)

	logger.L().Info("aegisd starting",
		"address", cfg.Server.Address,
		"venue", cfg.Venue.Name,
		"auth", cfg.Auth.Mode,
	)
	return api.NewServer(cfg.Server.Address, v, authSvc).Start(ctx)
}

func buildJournal(cfg *config.Config) (*audit.Log, error) {
	var publishers []audit.Publisher

	if cfg.Audit.RedisAddr != "" {
		p, err := audit.NewRedisPublisher(audit.RedisPublisherConfig{
			Address: cfg.Audit.RedisAddr,
			Stream:  cfg.Audit.RedisStream,
		})
		if err != nil {
			return nil, fmt.Errorf("redis publisher: %w", err)
		}
		publishers = append(publishers, p)
	}
	if cfg.Audit.RabbitMQURL != "" {
		p, err := audit.NewRabbitMQPublisher(audit.RabbitMQPublisherConfig{
			URL:     cfg.Audit.RabbitMQURL,
			Durable: true,
		})
		if err != nil {
			return nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		publishers = append(publishers, p)
	}
	if cfg.Audit.MySQLDSN != "" {
		p, err := audit.NewMySQLStore(cfg.Audit.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("mysql audit store: %w", err)
		}
		publishers = append(publishers, p)
	}
	return audit.NewLog(publishers...), nil
}

func buildParams(vc config.VaultConfig) (vault.Params, error) {
	minDeposit, err := config.Amount(vc.MinDeposit)
	if err != nil {
		return vault.Params{}, err
	}
	singleTxCap, err := config.Amount(vc.SingleTxCap)
	if err != nil {
		return vault.Params{}, err
	}
	dailyCap, err := config.Amount(vc.DailyCap)
	if err != nil {
		return vault.Params{}, err
	}
	depegThreshold, err := config.Amount(vc.DepegThreshold)
	if err != nil {
		return vault.Params{}, err
	}

	signers := make([]common.Address, 0, len(vc.Signers))
	for _, signer := range vc.Signers {
		signers = append(signers, common.HexToAddress(signer))
	}
	protocols := make([]common.Address, 0, len(vc.ApprovedProtocols))
	for _, protocol := range vc.ApprovedProtocols {
		protocols = append(protocols, common.HexToAddress(protocol))
	}

	return vault.Params{
		Owner:                 common.HexToAddress(vc.Owner),
		Guardian:              common.HexToAddress(vc.Guardian),
		Agent:                 common.HexToAddress(vc.Agent),
		Signers:               signers,
		RequiredConfirmations: vc.RequiredConfirmations,
		ReferenceAsset:        common.HexToAddress(vc.ReferenceAsset),
		MinDeposit:            minDeposit,
		SingleTxCap:           singleTxCap,
		DailyCap:              dailyCap,
		PerformanceFeeBps:     vc.PerformanceFeeBps,
		DefaultSlippageBps:    vc.DefaultSlippageBps,
		LiquidityPolicy:       vault.LiquidityPolicy(vc.LiquidityPolicy),
		ApprovedProtocols:     protocols,
		DepegThreshold:        depegThreshold,
		PegGuard:              vc.PegGuard,
	}, nil
}

// WithAlertsFrom wires the alert dispatcher: always the log channel, plus a
// webhook when configured.
func WithAlertsFrom(ac config.AlertConfig) vault.Option {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if ac.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: ac.WebhookURL})
	}
	return vault.WithAlerts(alerting.NewFanout(notifiers...))
}

func buildAuth(ac config.AuthConfig) *auth.Service {
	if ac.Mode == "" || ac.Mode == string(auth.ModeDisabled) {
		return auth.NewService(auth.ModeDisabled, nil)
	}
	keys := make([]auth.KeyEntry, 0, len(ac.Keys))
	for _, key := range ac.Keys {
		keys = append(keys, auth.KeyEntry{
			Key: key.Key,
			Subject: auth.Subject{
				Name:    key.Name,
				Address: common.HexToAddress(key.Address),
				Roles:   key.Roles,
			},
		})
	}
	return auth.NewService(auth.Mode(ac.Mode), keys)
}
