package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/foomo/helpboard/pkg/auth"
	"github.com/foomo/helpboard/pkg/bus"
	"github.com/foomo/helpboard/pkg/feed"
	"github.com/foomo/helpboard/pkg/handler"
	"github.com/foomo/helpboard/pkg/newsletter"
	"github.com/foomo/helpboard/pkg/repo"
	"github.com/foomo/helpboard/pkg/storage"
	"github.com/foomo/helpboard/pkg/store"
	"github.com/foomo/keel"
	"github.com/foomo/keel/healthz"
	"github.com/foomo/keel/net/http/middleware"
	"github.com/foomo/keel/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func NewServeCommand() *cobra.Command {
	v := newViper()
	service.DefaultHTTPPProfAddr = ":6060"

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the helpboard http server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svr := keel.NewServer(
				keel.WithHTTPPrometheusService(servicePrometheusEnabledFlag(v)),
				keel.WithHTTPHealthzService(serviceHealthzEnabledFlag(v)),
				keel.WithPrometheusMeter(servicePrometheusEnabledFlag(v)),
				keel.WithGracefulPeriod(gracefulPeriodFlag(v)),
				keel.WithOTLPGRPCTracer(otelEnabledFlag(v)),
				keel.WithHTTPPProfService(servicePProfEnabledFlag(v)),
			)

			l := svr.Logger()
			ctx := cmd.Context()

			l.Info("opening store", zap.String("type", storeTypeFlag(v)))
			s, err := store.Open(ctx, storeTypeFlag(v), storeDSNFlag(v))
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			st, err := createStorage(ctx, v, l)
			if err != nil {
				return fmt.Errorf("failed to create storage: %w", err)
			}

			history, err := repo.NewHistory(l.Named("inst.history"),
				repo.HistoryWithStorage(st),
				repo.HistoryWithHistoryDir(historyDirFlag(v)),
				repo.HistoryWithHistoryLimit(historyLimitFlag(v)),
			)
			if err != nil {
				return fmt.Errorf("failed to create history: %w", err)
			}

			issuer, err := auth.NewIssuer(l.Named("inst.auth"),
				auth.WithSecret([]byte(authSecretFlag(v))),
				auth.WithTTL(authTTLFlag(v)),
			)
			if err != nil {
				return fmt.Errorf("failed to create issuer: %w", err)
			}

			hub := feed.NewHub(l.Named("inst.feed"))

			repoOpts := []repo.Option{
				repo.WithPoll(pollFlag(v)),
				repo.WithPollInterval(pollIntervalFlag(v)),
				repo.WithListener(hub.Publish),
			}
			var b bus.Bus
			if url := natsURLFlag(v); url != "" {
				l.Info("connecting to nats", zap.String("url", url), zap.String("subject", natsSubjectFlag(v)))
				n, err := bus.NewNATS(l.Named("inst.bus"), url,
					bus.NATSWithSubject(natsSubjectFlag(v)),
					bus.NATSWithName(natsClientName()),
				)
				if err != nil {
					return fmt.Errorf("failed to create bus: %w", err)
				}
				b = n
				repoOpts = append(repoOpts, repo.WithBus(b))
			}

			r := repo.New(l.Named("inst.repo"), s, history, repoOpts...)

			handlerOpts := []handler.HTTPOption{
				handler.WithPath(basePathFlag(v)),
				handler.WithKeepAlive(feedKeepAliveFlag(v)),
			}
			if newsletterEnabledFlag(v) {
				handlerOpts = append(handlerOpts, handler.WithNewsletter(newsletter.New(l.Named("inst.newsletter"), st)))
			}

			isLoadedHealtherFn := healthz.NewHealthzerFn(func(ctx context.Context) error {
				if !r.Loaded() {
					return errors.New("feed not loaded yet")
				}
				return nil
			})
			// start initial update and handle error
			svr.AddStartupHealthzers(isLoadedHealtherFn)
			svr.AddReadinessHealthzers(isLoadedHealtherFn)

			svr.AddClosers(func(ctx context.Context) error {
				err := hub.Close()
				if b != nil {
					err = multierr.Append(err, b.Close())
				}
				err = multierr.Append(err, history.Close())
				return multierr.Append(err, s.Close())
			})

			middlewares := []middleware.Middleware{
				middleware.Telemetry(),
				middleware.Logger(),
			}
			// compression buffers the live feed, keep it opt-in
			if level := gzipLevelFlag(v); level > 0 {
				middlewares = append(middlewares, middleware.GZip(middleware.GZipWithLevel(level)))
			}
			middlewares = append(middlewares, middleware.Recover())

			svr.AddServices(
				service.NewGoRoutine(l.Named("go.repo"), "repo", func(ctx context.Context, l *zap.Logger) error {
					return r.Start(ctx)
				}),
				service.NewHTTP(l.Named("svc.http"), "http", addressFlag(v),
					handler.NewHTTP(l.Named("inst.handler"), r, hub, issuer, handlerOpts...),
					middlewares...,
				),
			)

			svr.Run()
			return nil
		},
	}

	flags := cmd.Flags()
	addAddressFlag(flags, v)
	addBasePathFlag(flags, v)
	addStoreTypeFlag(flags, v)
	addStoreDSNFlag(flags, v)
	addPollFlag(flags, v)
	addPollIntervalFlag(flags, v)
	addHistoryDirFlag(flags, v)
	addHistoryLimitFlag(flags, v)
	addStorageTypeFlag(flags, v)
	addStorageBlobBucketFlag(flags, v)
	addStorageBlobPrefixFlag(flags, v)
	addNATSURLFlag(flags, v)
	addNATSSubjectFlag(flags, v)
	addAuthSecretFlag(flags, v)
	addAuthTTLFlag(flags, v)
	addNewsletterEnabledFlag(flags, v)
	addFeedKeepAliveFlag(flags, v)
	addGzipLevelFlag(flags, v)
	addGracefulPeriodFlag(flags, v)
	addOtelEnabledFlag(flags, v)
	addServiceHealthzEnabledFlag(flags, v)
	addServicePrometheusEnabledFlag(flags, v)
	addServicePProfEnabledFlag(flags, v)

	return cmd
}

// createStorage creates the history and newsletter backend based on the configuration
func createStorage(ctx context.Context, v *viper.Viper, l *zap.Logger) (storage.Storage, error) {
	storageType := storageTypeFlag(v)
	blobBucket := storageBlobBucketFlag(v)
	blobPrefix := storageBlobPrefixFlag(v)

	// Warn about ignored blob config
	if storageType != storage.TypeBlob && (blobBucket != "" || blobPrefix != "") {
		l.Warn("blob storage flags are set but storage-type is not 'blob'; blob config will be ignored",
			zap.String("storage-type", storageType),
			zap.String("blob-bucket", blobBucket),
			zap.String("blob-prefix", blobPrefix),
		)
	}

	l.Info("creating storage", zap.String("type", storageType))
	if storageType == storage.TypeBlob {
		l.Info("using blob storage",
			zap.String("bucket", blobBucket),
			zap.String("prefix", blobPrefix),
			zap.String("provider", storage.BlobProvider(blobBucket)),
		)
	} else {
		l.Info("using filesystem storage", zap.String("dir", historyDirFlag(v)))
	}
	return storage.Open(ctx, storageType, historyDirFlag(v), blobBucket, blobPrefix)
}

func natsClientName() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return "helpboard@" + hostname
	}
	return "helpboard"
}
