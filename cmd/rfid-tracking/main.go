package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"log/slog"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/varasto-io/rfid-tracking/internal/pkg/application/notifications"
	"github.com/varasto-io/rfid-tracking/internal/pkg/application/tracking"
	"github.com/varasto-io/rfid-tracking/internal/pkg/application/webevents"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database/detections"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database/registry"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/router"
	"github.com/varasto-io/rfid-tracking/internal/pkg/presentation/api"
)

const serviceName string = "rfid-tracking"

type flagType int
type flagMap map[flagType]string

const (
	listenAddress flagType = iota
	servicePort

	configurationFile
	itemsFile
	readersFile
)

func defaultFlags() flagMap {
	return flagMap{
		listenAddress: "0.0.0.0",
		servicePort:   "8080",

		configurationFile: "/opt/varasto/config/config.yaml",
		itemsFile:         "/opt/varasto/config/items.csv",
		readersFile:       "/opt/varasto/config/readers.csv",
	}
}

func main() {
	ctx, flags := parseExternalConfig(context.Background(), defaultFlags())

	serviceVersion := buildinfo.SourceVersion()
	ctx, logger, cleanup := o11y.Init(ctx, serviceName, serviceVersion, "json")
	defer cleanup()

	cfgFile, err := os.Open(flags[configurationFile])
	exitIf(err, logger, "could not open configuration file")

	cfg, err := tracking.NewConfig(cfgFile)
	exitIf(err, logger, "could not parse configuration")

	notificationsFile, err := os.Open(flags[configurationFile])
	exitIf(err, logger, "could not open configuration file")

	notificationCfg, err := notifications.LoadConfiguration(notificationsFile)
	notificationsFile.Close()
	exitIf(err, logger, "could not parse notification configuration")

	connect := newConnector(ctx)

	registryRepo, err := registry.NewRepository(connect)
	exitIf(err, logger, "could not create registry repository")

	detectionRepo, err := detections.NewRepository(connect, cfg.DedupWindow())
	exitIf(err, logger, "could not create detection repository")

	seed(ctx, logger, flags, registryRepo)

	messenger, err := messaging.Initialize(ctx, messaging.LoadConfiguration(ctx, serviceName, logger))
	exitIf(err, logger, "failed to init messenger")
	messenger.Start()
	defer messenger.Close()

	we := webevents.New()
	defer we.Shutdown()

	svc, err := tracking.New(registryRepo, detectionRepo, messenger, notifications.New(notificationCfg), we, cfg)
	exitIf(err, logger, "could not create tracking service")

	r, err := api.RegisterHandlers(ctx, router.New(serviceName), svc, we)
	exitIf(err, logger, "failed to register handlers")

	apiPort := fmt.Sprintf("%s:%s", flags[listenAddress], flags[servicePort])
	logger.Info("starting to listen for incoming connections", slog.String("address", apiPort))

	err = http.ListenAndServe(apiPort, r)
	exitIf(err, logger, "failed to start request router")
}

func newConnector(ctx context.Context) database.ConnectorFunc {
	if os.Getenv("POSTGRES_HOST") != "" {
		return database.NewPostgreSQLConnector(ctx, database.LoadConfigFromEnv(ctx))
	}

	logging.GetFromContext(ctx).Info("no database configured, using in memory store")

	return database.NewSQLiteConnector(ctx)
}

func seed(ctx context.Context, logger *slog.Logger, flags flagMap, repo registry.Repository) {
	readersFileHandle, err := os.Open(flags[readersFile])
	exitIf(err, logger, "could not open readers file")
	defer readersFileHandle.Close()

	err = registry.SeedReaders(ctx, repo, readersFileHandle)
	exitIf(err, logger, "could not seed readers")

	itemsFileHandle, err := os.Open(flags[itemsFile])
	exitIf(err, logger, "could not open items file")
	defer itemsFileHandle.Close()

	err = registry.SeedItems(ctx, repo, itemsFileHandle)
	exitIf(err, logger, "could not seed tracked items")
}

func parseExternalConfig(ctx context.Context, flags flagMap) (context.Context, flagMap) {
	// Allow environment variables to override certain defaults
	envOrDef := env.GetVariableOrDefault

	flags[listenAddress] = envOrDef(ctx, "LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = envOrDef(ctx, "SERVICE_PORT", flags[servicePort])

	apply := func(f flagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("config", "tracking configuration file", apply(configurationFile))
	flag.Func("items", "catalog of tracked items", apply(itemsFile))
	flag.Func("readers", "list of known readers", apply(readersFile))
	flag.Parse()

	return ctx, flags
}

func exitIf(err error, logger *slog.Logger, msg string, args ...any) {
	if err != nil {
		logger.With(args...).Error(msg, "err", err.Error())
		time.Sleep(2 * time.Second)
		os.Exit(1)
	}
}
