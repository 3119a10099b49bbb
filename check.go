package main

import (
	"context"
	"errors"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"storybook/core/validation"
)

func runCheck(ctx context.Context, cmd *cli.Command) error {
	env := envFrom(ctx)
	suite := validation.NewValidationSuite(env.Cfg).
		WithOutput(env.Out).
		WithTimeout(cmd.Duration("timeout")).
		WithFailFast(cmd.Bool("fail-fast"))

	var result validation.SuiteResult
	if cmd.Bool("offline") {
		result = suite.ValidateQuick(ctx)
	} else {
		result = suite.Validate(ctx)
	}
	return preflightError(env.Log.Zap(), result)
}

// preflight runs the local checks before the service starts listening.
func preflight(ctx context.Context, env *appEnv) error {
	result := validation.NewValidationSuite(env.Cfg).
		WithOutput(env.Out).
		WithShowProgress(env.Cfg.IsDevelopment()).
		ValidateQuick(ctx)
	return preflightError(env.Log.Zap(), result)
}

func preflightError(log *zap.Logger, result validation.SuiteResult) error {
	if result.Success {
		log.Info(result.Summary(), zap.Int("warnings", result.Warnings))
		return nil
	}
	log.Error(result.Summary())
	if err := result.FirstError(); err != nil {
		return err
	}
	return errors.New(result.Summary())
}

var checkFlags = []cli.Flag{
	&cli.BoolFlag{Name: "offline", Usage: "skip probing the image backend"},
	&cli.BoolFlag{Name: "fail-fast", Usage: "stop at the first failed check"},
	&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "bound each network probe"},
}
