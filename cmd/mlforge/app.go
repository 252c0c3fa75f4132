// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mlforge/mlforge/internal/boot"
	"github.com/mlforge/mlforge/internal/compose"
	"github.com/mlforge/mlforge/internal/config"
	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/registry"
	"github.com/mlforge/mlforge/pkg/forgefile"
	"github.com/mlforge/mlforge/pkg/types"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: all Cobra command handlers receive an App
	// reference and delegate business logic through its service interfaces
	// (Composer, Dispatch, Resolver, Config).
	App struct {
		Config   ConfigProvider
		Composer ComposeService
		Dispatch DispatchService
		Resolver DigestResolver
		Images   ImageService
		stdout   io.Writer
		stderr   io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp. Tests supply
	// mock implementations to isolate specific service behavior.
	Dependencies struct {
		Config   ConfigProvider
		Composer ComposeService
		Dispatch DispatchService
		Resolver DigestResolver
		Images   ImageService
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// DispatchRequest captures all CLI run inputs as an immutable value.
	// Args reach the registered entrypoint exactly as given here.
	DispatchRequest struct {
		// Image is the tag of the composed image to launch.
		Image container.ImageTag
		// Args is the verbatim argument vector for the entrypoint.
		Args []string
		// Interactive attaches the process stdin to the container.
		Interactive bool
	}

	// ConfigProvider loads configuration using explicit options.
	// This abstraction enables testing with custom config sources.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// ComposeService plans and builds project images. Plan is pure: it
	// never touches the filesystem or a container engine.
	ComposeService interface {
		Plan(cfg *compose.Config) (*compose.Plan, error)
		Build(ctx context.Context, engine container.EngineType, cfg *compose.Config) (*compose.Result, error)
	}

	// DispatchService launches composed images and reports the container's
	// exit code. A non-zero code with a nil error means the entrypoint ran
	// and failed; that outcome belongs to the user, not to mlforge.
	DispatchService interface {
		Run(ctx context.Context, engine container.EngineType, req DispatchRequest) (types.ExitCode, error)
	}

	// DigestResolver resolves a floating image reference to the digest the
	// registry currently serves for it.
	DigestResolver interface {
		ResolveDigest(ctx context.Context, ref string) (forgefile.ImageDigest, error)
	}

	// ImageService exposes the engine's local image store to commands that
	// manage composed images without building or running them.
	ImageService interface {
		Exists(ctx context.Context, engine container.EngineType, image container.ImageTag) (bool, error)
		Inspect(ctx context.Context, engine container.EngineType, image container.ImageTag) (string, error)
		Remove(ctx context.Context, engine container.EngineType, image container.ImageTag, force bool) error
	}

	// engineComposeService is the production ComposeService: it creates the
	// requested container engine per build and drives a compose.Composer.
	engineComposeService struct{}

	// engineDispatchService is the production DispatchService backed by a
	// boot.Dispatcher.
	engineDispatchService struct {
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
	}

	// engineImageService is the production ImageService: it creates the
	// requested container engine per call and queries its local store.
	engineImageService struct{}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Composer == nil {
		deps.Composer = &engineComposeService{}
	}
	if deps.Dispatch == nil {
		deps.Dispatch = &engineDispatchService{
			stdin:  os.Stdin,
			stdout: deps.Stdout,
			stderr: deps.Stderr,
		}
	}
	if deps.Resolver == nil {
		deps.Resolver = registry.NewResolver()
	}
	if deps.Images == nil {
		deps.Images = &engineImageService{}
	}

	return &App{
		Config:   deps.Config,
		Composer: deps.Composer,
		Dispatch: deps.Dispatch,
		Resolver: deps.Resolver,
		Images:   deps.Images,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}, nil
}

// loadConfigOrDefaults loads configuration via the provider. An explicitly
// named config file must load or the command aborts; for the default lookup
// paths the CLI stays operational on defaults and prints a warning instead.
// Configuration-driven UI settings (verbose, color scheme) are applied to
// the package state here, after flags have had their chance to win.
func (a *App) loadConfigOrDefaults(ctx context.Context, explicitPath string) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: explicitPath})
	if err != nil {
		if explicitPath != "" {
			return nil, err
		}
		fmt.Fprintf(a.stderr, "%s failed to load config, using defaults: %s\n",
			warnIcon, formatErrorForDisplay(err, verbose))
		cfg = config.DefaultConfig()
	}

	if !verbose && cfg.UI.Verbose {
		verbose = true
		setupLogging(true)
	}
	colorScheme = cfg.UI.ColorScheme

	return cfg, nil
}

// Plan expands the configuration into the ordered step plan.
func (s *engineComposeService) Plan(cfg *compose.Config) (*compose.Plan, error) {
	return compose.NewPlan(cfg)
}

// Build creates the preferred engine and runs the full composition.
func (s *engineComposeService) Build(ctx context.Context, engineType container.EngineType, cfg *compose.Config) (*compose.Result, error) {
	engine, err := container.NewEngine(engineType)
	if err != nil {
		return nil, err
	}
	return compose.NewComposer(engine, cfg).Build(ctx)
}

// Run creates the preferred engine and dispatches the image through it.
func (s *engineDispatchService) Run(ctx context.Context, engineType container.EngineType, req DispatchRequest) (types.ExitCode, error) {
	engine, err := container.NewEngine(engineType)
	if err != nil {
		return 1, err
	}

	opts := []boot.DispatcherOption{
		boot.WithStdout(s.stdout),
		boot.WithStderr(s.stderr),
	}
	if req.Interactive {
		opts = append(opts, boot.WithStdin(s.stdin))
	}

	return boot.NewDispatcher(engine, opts...).Run(ctx, req.Image, req.Args)
}

// Exists reports whether the image is present in the engine's local store.
func (s *engineImageService) Exists(ctx context.Context, engineType container.EngineType, image container.ImageTag) (bool, error) {
	engine, err := container.NewEngine(engineType)
	if err != nil {
		return false, err
	}
	return engine.ImageExists(ctx, image)
}

// Inspect returns the engine's JSON description of the image.
func (s *engineImageService) Inspect(ctx context.Context, engineType container.EngineType, image container.ImageTag) (string, error) {
	engine, err := container.NewEngine(engineType)
	if err != nil {
		return "", err
	}
	return engine.InspectImage(ctx, image)
}

// Remove deletes the image from the engine's local store.
func (s *engineImageService) Remove(ctx context.Context, engineType container.EngineType, image container.ImageTag, force bool) error {
	engine, err := container.NewEngine(engineType)
	if err != nil {
		return err
	}
	return engine.RemoveImage(ctx, image, force)
}

// resolveEngineType picks the container engine for this invocation: the
// --engine flag wins, then the configured engine, then auto-detection.
func resolveEngineType(flagValue string, cfg *config.Config) (container.EngineType, error) {
	engineType := cfg.ContainerEngine
	if flagValue != "" {
		engineType = container.EngineType(flagValue)
	}
	if err := engineType.Validate(); err != nil {
		return "", err
	}
	return engineType, nil
}
