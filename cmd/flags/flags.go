package flags

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/node-launcher/common"
	"github.com/ruteri/node-launcher/datadir"
	"github.com/ruteri/node-launcher/launcher"
	"github.com/ruteri/node-launcher/startup"
	"github.com/urfave/cli/v2"
)

// LoggingOpts reads the logging flags. Output stays off unless NODE_LOG
// names a level or one of the log flags is set explicitly.
func LoggingOpts(cCtx *cli.Context) common.LoggingOpts {
	level, enabled := common.LevelFromEnv(os.Getenv(common.LogEnvVar))
	opts := common.LoggingOpts{
		Debug:    cCtx.Bool(LogDebugFlag.Name),
		JSON:     cCtx.Bool(LogJsonFlag.Name),
		Service:  cCtx.String(LogServiceFlag.Name),
		Version:  common.Version,
		Disabled: !enabled && !cCtx.IsSet(LogDebugFlag.Name) && !cCtx.IsSet(LogJsonFlag.Name),
	}
	if enabled && !opts.Debug {
		opts.Level = &level
	}
	return opts
}

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	opts := LoggingOpts(cCtx)
	logger := common.SetupLogger(&opts)

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// LaunchOptions maps the command line onto launcher options.
func LaunchOptions(cCtx *cli.Context, logger *slog.Logger) launcher.Options {
	return launcher.Options{
		DataDir: datadir.Options{
			Dev:   cCtx.Bool(DevFlag.Name),
			AppID: cCtx.String(AppIDFlag.Name),
			Root:  cCtx.String(DataDirFlag.Name),
		},
		ResourceDir: cCtx.String(ResourcesFlag.Name),
		Startup: startup.Config{
			GracePeriod:     cCtx.Duration(GracePeriodFlag.Name),
			ReadyTimeout:    cCtx.Duration(ReadyTimeoutFlag.Name),
			ShutdownTimeout: cCtx.Duration(ShutdownTimeoutFlag.Name),
		},
		NodeLogging: LoggingOpts(cCtx),
		EnablePprof: cCtx.Bool(PprofFlag.Name),
		Log:         logger,
	}
}

var DevFlag = &cli.BoolFlag{
	Name:    "dev",
	Value:   false,
	Usage:   "use a temporary data directory removed on exit",
	EnvVars: []string{"NODE_LAUNCHER_DEV"},
}

var AppIDFlag = &cli.StringFlag{
	Name:  "app-id",
	Value: datadir.DefaultAppID,
	Usage: "application id appended to the platform data directory",
}

var DataDirFlag = &cli.StringFlag{
	Name:  "data-dir",
	Value: "",
	Usage: "use this data directory instead of the platform one",
}

var ResourcesFlag = &cli.StringFlag{
	Name:  "resources",
	Value: "./" + launcher.DefaultResourceDir,
	Usage: "directory holding the bundled config.toml and schemas/schema.lock",
}

var ReadyTimeoutFlag = &cli.DurationFlag{
	Name:  "ready-timeout",
	Value: startup.DefaultReadyTimeout,
	Usage: "maximum time to wait for the node to become ready",
}

var GracePeriodFlag = &cli.DurationFlag{
	Name:  "grace-period",
	Value: startup.DefaultGracePeriod,
	Usage: "delay after a schema migration before signalling readiness",
}

var ShutdownTimeoutFlag = &cli.DurationFlag{
	Name:  "shutdown-timeout",
	Value: startup.DefaultShutdownTimeout,
	Usage: "maximum time to wait for the node to shut down",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint on the node API",
}

var StopTimeout = 30 * time.Second

var CommonFlags = []cli.Flag{
	DevFlag,
	AppIDFlag,
	DataDirFlag,
	ResourcesFlag,
	ReadyTimeoutFlag,
	GracePeriodFlag,
	ShutdownTimeoutFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
}
