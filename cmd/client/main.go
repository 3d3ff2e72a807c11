package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/buildinfo"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/archive"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/cli"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/client"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/config"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/facade"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/migrations"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/services"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/filex"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/netx"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	if err := run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	migrations.SetLogger(logger)

	if path := filex.DBPath(cfg.DatabaseDSN); path != "" {
		if err := filex.EnsureParentDir(path); err != nil {
			return err
		}
	}
	st, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.DeviceID != "" {
		if err := st.SetDeviceID(ctx, cfg.DeviceID); err != nil {
			return err
		}
	}

	api, err := client.NewHTTPClient(cfg.APIBaseURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithTokens(cfg.AccessToken, cfg.RefreshToken),
		client.WithLogger(logger.With("component", "api")),
	)
	if err != nil {
		return err
	}

	var archiver archive.Archiver = archive.Nop{}
	if cfg.Archive.Enabled() {
		a, err := archive.NewS3Archiver(ctx, archive.S3Options{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		}, cfg.Archive.Passphrase)
		if err != nil {
			logger.Warn(ctx, "archive disabled", "error", err)
		} else {
			archiver = a
		}
	}

	auth := services.NewAuthService(api, st, logger)
	checkout := services.NewCheckoutService(st, api, logger, services.CheckoutOptions{
		Statuses:    cfg.CheckoutStatuses,
		FallbackTTL: cfg.FallbackCheckoutTTL,
	})
	checkin := services.NewCheckinService(st, api, logger, services.CheckinOptions{
		PurgeOnPartialFailure: cfg.PurgeOnPartialFailure,
		Archiver:              archiver,
	})
	queue := services.NewSyncQueueService(st, api, logger, services.SyncOptions{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
	})
	editor := services.NewEditorService(st, logger, cfg.MaxRetries)

	f := facade.New(checkout, checkin, queue, logger, facade.Options{AutoSync: cfg.AutoSync})

	watcher := netx.NewWatcher(auth, cfg.OnlineCheckInterval, func(online bool) {
		f.SetOnline(ctx, online)
	})
	if err := f.Init(ctx, watcher.Check(ctx)); err != nil {
		return err
	}
	go watcher.Run(ctx)

	app := cli.NewApp(cfg, cli.Deps{
		Auth:    auth,
		Editor:  editor,
		Queue:   queue,
		Checkin: checkin,
		Offline: f,
	}, logger)
	app.Run(ctx)
	return nil
}
