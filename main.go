package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storybook/core"
	"storybook/logging"
)

const appName = "storybook"

// appEnv is the state shared by the commands that need configuration.
type appEnv struct {
	Cfg *core.Config
	Log *logging.Logger

	// Out receives user-facing progress output.
	Out io.Writer
}

type appEnvKey struct{}

func envFrom(ctx context.Context) *appEnv {
	env, _ := ctx.Value(appEnvKey{}).(*appEnv)
	return env
}

// partialError marks a command that finished its work but not all of it.
type partialError struct {
	failed int
	total  int
}

func (e *partialError) Error() string {
	return fmt.Sprintf("%d of %d illustrations could not be acquired", e.failed, e.total)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var partial *partialError
	if errors.As(err, &partial) {
		return core.ExitCodePartial
	}
	return core.ExitCodeForError(err)
}

// prepareEnv loads .env and the configuration and builds the logger. It
// runs before serve, render and check; version and inspect work without it.
func prepareEnv(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := core.LoadConfig()
	if err != nil {
		return ctx, err
	}

	logger, err := logging.NewLogger(logging.Options{
		Level:       logging.ParseLogLevel(cfg.LogLevel, zapcore.InfoLevel),
		Development: cfg.Environment == core.DevelopmentEnvironment,
		FilePath:    cfg.LogFile,
	})
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}

	logger.Debug("Program started",
		zap.String("command", cmd.Name),
		zap.String("version", core.Version),
		zap.String("runtime", runtime.Version()),
		zap.String("image_backend", cfg.ImageBackend),
	)

	env := &appEnv{Cfg: cfg, Log: logger, Out: cmd.Root().Writer}
	return context.WithValue(ctx, appEnvKey{}, env), nil
}

func destroyEnv(ctx context.Context, _ *cli.Command) error {
	env := envFrom(ctx)
	if env == nil || env.Log == nil {
		return nil
	}
	if err := env.Log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
	return nil
}

var errWasHandled bool

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	if env := envFrom(ctx); env != nil && env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err), zap.String("exit", core.ExitCodeName(exitCode(err))))
		errWasHandled = true
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:            appName,
		Usage:           "turns a story idea into an illustrated PDF storybook",
		Version:         core.GetVersionInfo(),
		HideHelpCommand: true,
		ExitErrHandler:  exitErrHandler,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Runs the HTTP service",
				Before: prepareEnv,
				After:  destroyEnv,
				Action: runServe,
			},
			{
				Name:      "render",
				Usage:     "Synthesizes a story from a params file and writes it as a PDF",
				ArgsUsage: " ",
				Before:    prepareEnv,
				After:     destroyEnv,
				Action:    runRender,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "params", Aliases: []string{"p"}, Required: true, Usage: "story parameters `FILE` (YAML)"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "story.pdf", Usage: "write the document to `FILE`"},
					&cli.BoolFlag{Name: "no-images", Usage: "compose text-only pages without acquiring illustrations"},
				},
			},
			{
				Name:   "check",
				Usage:  "Verifies the configuration, output locations and image backend",
				Before: prepareEnv,
				After:  destroyEnv,
				Action: runCheck,
				Flags:  checkFlags,
			},
			{
				Name:      "inspect",
				Usage:     "Prints the page count and text of a composed PDF",
				ArgsUsage: "FILE",
				Action:    runInspect,
			},
			{
				Name:  "version",
				Usage: "Prints build information",
				Action: func(_ context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintf(cmd.Root().Writer, "%s %s (%s)\n", appName, core.GetVersionInfo(), runtime.Version())
					return err
				},
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp().Run(ctx, os.Args)
	stop()
	if err != nil {
		if !errWasHandled {
			fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}
