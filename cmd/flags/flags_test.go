package flags

import (
	"testing"
	"time"

	"github.com/ruteri/node-launcher/datadir"
	"github.com/ruteri/node-launcher/launcher"
	"github.com/ruteri/node-launcher/startup"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runWith(t *testing.T, args ...string) launcher.Options {
	t.Helper()
	var opts launcher.Options
	app := &cli.App{
		Flags: CommonFlags,
		Action: func(cCtx *cli.Context) error {
			opts = LaunchOptions(cCtx, SetupLogger(cCtx))
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"launcher"}, args...)))
	return opts
}

func TestLaunchOptionsDefaults(t *testing.T) {
	t.Setenv("NODE_LOG", "")
	t.Setenv("NODE_LAUNCHER_DEV", "")

	opts := runWith(t)
	require.False(t, opts.DataDir.Dev)
	require.Equal(t, datadir.DefaultAppID, opts.DataDir.AppID)
	require.Empty(t, opts.DataDir.Root)
	require.Equal(t, "./resources", opts.ResourceDir)
	require.Equal(t, startup.DefaultGracePeriod, opts.Startup.GracePeriod)
	require.Equal(t, startup.DefaultReadyTimeout, opts.Startup.ReadyTimeout)
	require.True(t, opts.NodeLogging.Disabled)
	require.NotNil(t, opts.Log)
}

func TestLaunchOptionsFlags(t *testing.T) {
	t.Setenv("NODE_LOG", "warn")

	opts := runWith(t, "--dev", "--data-dir", "/tmp/node", "--grace-period", "250ms", "--ready-timeout", "5s", "--pprof")
	require.True(t, opts.DataDir.Dev)
	require.Equal(t, "/tmp/node", opts.DataDir.Root)
	require.Equal(t, 250*time.Millisecond, opts.Startup.GracePeriod)
	require.Equal(t, 5*time.Second, opts.Startup.ReadyTimeout)
	require.True(t, opts.EnablePprof)
	require.False(t, opts.NodeLogging.Disabled)
	require.NotNil(t, opts.NodeLogging.Level)
}
