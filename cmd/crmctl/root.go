package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/crmkit/client"
	"github.com/kbukum/crmkit/config"
	"github.com/kbukum/crmkit/logger"
	"github.com/kbukum/crmkit/observability"
	"github.com/kbukum/crmkit/version"
)

// annotationClient marks commands that need a configured client.
const annotationClient = "crmctl/client"

var withClient = map[string]string{annotationClient: "true"}

type rootOptions struct {
	configFile string
	envFile    string
	location   string
	output     string
	interval   time.Duration
}

// app is built once per invocation by the root command.
type app struct {
	cfg      *AppConfig
	log      *logger.Logger
	client   *client.Client
	shutdown []func(context.Context) error
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Query a CRM backend through the resilient access layer",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationClient] == "" {
				return nil
			}
			return a.start(cmd.Context(), opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.stop(context.WithoutCancel(cmd.Context()))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default: ./crmctl.yaml)")
	flags.StringVar(&opts.envFile, "env-file", "", ".env file to load")
	flags.StringVarP(&opts.location, "location", "l", "", "location id (overrides crm.location)")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")

	cmd.AddCommand(
		newListCmd(a, opts),
		newHealthCmd(a, opts),
		newWatchCmd(a, opts),
	)
	return cmd
}

func (a *app) start(ctx context.Context, opts *rootOptions) error {
	switch opts.output {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	var overrides []config.LoaderOption
	if opts.location != "" {
		overrides = append(overrides, config.WithOverride("crm.location", opts.location))
	}
	if opts.interval > 0 {
		overrides = append(overrides, config.WithOverride("crm.health.interval", opts.interval))
	}
	cfg, err := loadConfig(opts.configFile, opts.envFile, overrides...)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.Logger()

	clientOpts := []client.Option{client.WithLogger(a.log)}
	if cfg.Telemetry.Endpoint != "" {
		metrics, err := a.initTelemetry(ctx)
		if err != nil {
			return err
		}
		clientOpts = append(clientOpts, client.WithMetrics(metrics))
	}

	c, err := client.New(cfg.CRM, clientOpts...)
	if err != nil {
		return err
	}
	a.client = c
	a.shutdown = append(a.shutdown, func(context.Context) error { return c.Close() })
	return nil
}

func (a *app) initTelemetry(ctx context.Context) (*observability.Metrics, error) {
	info := version.Get()
	tc := observability.DefaultTracerConfig(a.cfg.Name)
	tc.ServiceVersion = info.Short()
	tc.Environment = a.cfg.Environment
	tc.Endpoint = a.cfg.Telemetry.Endpoint
	tc.Insecure = a.cfg.Telemetry.Insecure
	tc.SampleRate = a.cfg.Telemetry.SampleRate
	tp, err := observability.InitTracer(ctx, tc)
	if err != nil {
		return nil, err
	}
	a.shutdown = append(a.shutdown, tp.Shutdown)

	mc := observability.DefaultMeterConfig(a.cfg.Name)
	mc.ServiceVersion = tc.ServiceVersion
	mc.Environment = tc.Environment
	mc.Endpoint = tc.Endpoint
	mc.Insecure = tc.Insecure
	mp, err := observability.InitMeter(ctx, mc)
	if err != nil {
		return nil, err
	}
	a.shutdown = append(a.shutdown, mp.Shutdown)

	a.log.Info("telemetry enabled", logger.Fields(logger.FieldEndpoint, tc.Endpoint))
	return observability.NewMetrics(observability.Meter("github.com/kbukum/crmkit"))
}

// stop releases resources in reverse order of acquisition.
func (a *app) stop(ctx context.Context) error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.shutdown = nil
	return errors.Join(errs...)
}
