package cmd

import (
	"time"

	"github.com/foomo/helpboard/pkg/bus"
	"github.com/foomo/helpboard/pkg/storage"
	"github.com/foomo/helpboard/pkg/store"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func logLevelFlag(v *viper.Viper) string {
	return v.GetString("log.level")
}

func addLogLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-level", "info", "log level")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func logFormatFlag(v *viper.Viper) string {
	return v.GetString("log.format")
}

func addLogFormatFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-format", "json", "log format")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}

// ------------------------------------------------------------------------------------------------
// ~ Serve
// ------------------------------------------------------------------------------------------------

func addressFlag(v *viper.Viper) string {
	return v.GetString("address")
}

func addAddressFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("address", ":8080", "Address to bind to (host:port)")
	_ = v.BindPFlag("address", flags.Lookup("address"))
	_ = v.BindEnv("address", "HELPBOARD_ADDRESS")
}

func basePathFlag(v *viper.Viper) string {
	return v.GetString("base_path")
}

func addBasePathFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("base-path", "/helpboard", "Base path to export the webserver on")
	_ = v.BindPFlag("base_path", flags.Lookup("base-path"))
	_ = v.BindEnv("base_path", "HELPBOARD_BASE_PATH")
}

func storeTypeFlag(v *viper.Viper) string {
	return v.GetString("store.type")
}

func addStoreTypeFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("store-type", store.TypeDocstore, "Post store backend: docstore or sqlite")
	_ = v.BindPFlag("store.type", flags.Lookup("store-type"))
	_ = v.BindEnv("store.type", "HELPBOARD_STORE_TYPE")
}

func storeDSNFlag(v *viper.Viper) string {
	return v.GetString("store.dsn")
}

func addStoreDSNFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("store-dsn", "mem://posts/id", "Collection URL (mem://, firestore://) or sqlite database file")
	_ = v.BindPFlag("store.dsn", flags.Lookup("store-dsn"))
	_ = v.BindEnv("store.dsn", "HELPBOARD_STORE_DSN")
}

func pollFlag(v *viper.Viper) bool {
	return v.GetBool("poll.enabled")
}

func addPollFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("poll", false, "If true, the store will be polled periodically for changes of other writers")
	_ = v.BindPFlag("poll.enabled", flags.Lookup("poll"))
	_ = v.BindEnv("poll.enabled", "HELPBOARD_POLL")
}

func pollIntervalFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("poll.interval")
}

func addPollIntervalFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("poll-interval", time.Minute, "Specifies the poll interval")
	_ = v.BindPFlag("poll.interval", flags.Lookup("poll-interval"))
	_ = v.BindEnv("poll.interval", "HELPBOARD_POLL_INTERVAL")
}

func historyDirFlag(v *viper.Viper) string {
	return v.GetString("history.dir")
}

func addHistoryDirFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("history-dir", "/var/lib/helpboard", "Where to put my data")
	_ = v.BindPFlag("history.dir", flags.Lookup("history-dir"))
	_ = v.BindEnv("history.dir", "HELPBOARD_HISTORY_DIR")
}

func historyLimitFlag(v *viper.Viper) int {
	return v.GetInt("history.limit")
}

func addHistoryLimitFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("history-limit", 2, "Number of history records to keep")
	_ = v.BindPFlag("history.limit", flags.Lookup("history-limit"))
	_ = v.BindEnv("history.limit", "HELPBOARD_HISTORY_LIMIT")
}

func storageTypeFlag(v *viper.Viper) string {
	return v.GetString("storage.type")
}

func addStorageTypeFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-type", storage.TypeFilesystem, "History and newsletter storage: filesystem or blob")
	_ = v.BindPFlag("storage.type", flags.Lookup("storage-type"))
	_ = v.BindEnv("storage.type", "HELPBOARD_STORAGE_TYPE")
}

func storageBlobBucketFlag(v *viper.Viper) string {
	return v.GetString("storage.blob.bucket")
}

func addStorageBlobBucketFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-blob-bucket", "", "Bucket URL for blob storage (gs://, s3://, azblob://)")
	_ = v.BindPFlag("storage.blob.bucket", flags.Lookup("storage-blob-bucket"))
	_ = v.BindEnv("storage.blob.bucket", "HELPBOARD_STORAGE_BLOB_BUCKET")
}

func storageBlobPrefixFlag(v *viper.Viper) string {
	return v.GetString("storage.blob.prefix")
}

func addStorageBlobPrefixFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-blob-prefix", "", "Key prefix inside the blob bucket")
	_ = v.BindPFlag("storage.blob.prefix", flags.Lookup("storage-blob-prefix"))
	_ = v.BindEnv("storage.blob.prefix", "HELPBOARD_STORAGE_BLOB_PREFIX")
}

func natsURLFlag(v *viper.Viper) string {
	return v.GetString("nats.url")
}

func addNATSURLFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("nats-url", "", "Announce and receive changes of other instances over nats, e.g. nats://localhost:4222")
	_ = v.BindPFlag("nats.url", flags.Lookup("nats-url"))
	_ = v.BindEnv("nats.url", "HELPBOARD_NATS_URL")
}

func natsSubjectFlag(v *viper.Viper) string {
	return v.GetString("nats.subject")
}

func addNATSSubjectFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("nats-subject", bus.DefaultSubject, "Subject of post changes")
	_ = v.BindPFlag("nats.subject", flags.Lookup("nats-subject"))
	_ = v.BindEnv("nats.subject", "HELPBOARD_NATS_SUBJECT")
}

func authSecretFlag(v *viper.Viper) string {
	return v.GetString("auth.secret")
}

func addAuthSecretFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("auth-secret", "", "HMAC secret for identity tokens, random if empty")
	_ = v.BindPFlag("auth.secret", flags.Lookup("auth-secret"))
	_ = v.BindEnv("auth.secret", "HELPBOARD_AUTH_SECRET")
}

func authTTLFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("auth.ttl")
}

func addAuthTTLFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("auth-ttl", 30*24*time.Hour, "Lifetime of identity tokens")
	_ = v.BindPFlag("auth.ttl", flags.Lookup("auth-ttl"))
	_ = v.BindEnv("auth.ttl", "HELPBOARD_AUTH_TTL")
}

func newsletterEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("newsletter.enabled")
}

func addNewsletterEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("newsletter", true, "Accept newsletter subscriptions")
	_ = v.BindPFlag("newsletter.enabled", flags.Lookup("newsletter"))
	_ = v.BindEnv("newsletter.enabled", "HELPBOARD_NEWSLETTER")
}

func feedKeepAliveFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("feed.keepalive")
}

func addFeedKeepAliveFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("feed-keepalive", 30*time.Second, "Interval of keepalive comments on the event stream")
	_ = v.BindPFlag("feed.keepalive", flags.Lookup("feed-keepalive"))
	_ = v.BindEnv("feed.keepalive", "HELPBOARD_FEED_KEEPALIVE")
}

func gzipLevelFlag(v *viper.Viper) int {
	return v.GetInt("gzip.level")
}

func addGzipLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("gzip-level", 0, "Gzip compression level of replies, 0 disables compression")
	_ = v.BindPFlag("gzip.level", flags.Lookup("gzip-level"))
	_ = v.BindEnv("gzip.level", "HELPBOARD_GZIP_LEVEL")
}

func gracefulPeriodFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("graceful_period")
}

func addGracefulPeriodFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("graceful-period", 0, "Graceful period before shutting down")
	_ = v.BindPFlag("graceful_period", flags.Lookup("graceful-period"))
	_ = v.BindEnv("graceful_period", "HELPBOARD_GRACEFUL_PERIOD")
}

func serviceHealthzEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.healthz.enabled")
}

func addServiceHealthzEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-healthz-enabled", false, "Enable healthz service")
	_ = v.BindPFlag("service.healthz.enabled", flags.Lookup("service-healthz-enabled"))
}

func servicePrometheusEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.prometheus.enabled")
}

func addServicePrometheusEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-prometheus-enabled", false, "Enable prometheus service")
	_ = v.BindPFlag("service.prometheus.enabled", flags.Lookup("service-prometheus-enabled"))
}

func servicePProfEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.pprof.enabled")
}

func addServicePProfEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-pprof-enabled", false, "Enable pprof service")
	_ = v.BindPFlag("service.pprof.enabled", flags.Lookup("service-pprof-enabled"))
}

func otelEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("otel.enabled")
}

func addOtelEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("otel-enabled", false, "Enable otel service")
	_ = v.BindPFlag("otel.enabled", flags.Lookup("otel-enabled"))
	_ = v.BindEnv("otel.enabled", "OTEL_ENABLED")
}

// ------------------------------------------------------------------------------------------------
// ~ Client
// ------------------------------------------------------------------------------------------------

func serverFlag(v *viper.Viper) string {
	return v.GetString("server")
}

func addServerFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("server", "http://localhost:8080/helpboard", "Base url of the helpboard server")
	_ = v.BindPFlag("server", flags.Lookup("server"))
	_ = v.BindEnv("server", "HELPBOARD_SERVER")
}

func tokenFlag(v *viper.Viper) string {
	return v.GetString("token")
}

func addTokenFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("token", "", "Identity token, a new anonymous identity is created if empty")
	_ = v.BindPFlag("token", flags.Lookup("token"))
	_ = v.BindEnv("token", "HELPBOARD_TOKEN")
}

func categoryFlag(v *viper.Viper) string {
	return v.GetString("category")
}

func addCategoryFlag(flags *pflag.FlagSet, v *viper.Viper, value, usage string) {
	flags.String("category", value, usage)
	_ = v.BindPFlag("category", flags.Lookup("category"))
	_ = v.BindEnv("category", "HELPBOARD_CATEGORY")
}
