package main

import (
	"net/http"
	"os"
	"time"

	"github.com/fiffu/linewatch/app"
	"github.com/fiffu/linewatch/config"
	"github.com/fiffu/linewatch/lib"
	"github.com/fiffu/linewatch/lib/ingest"
	"github.com/fiffu/linewatch/lib/navitia"
	"github.com/fiffu/linewatch/senders"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.StopTimeout(config.ShutdownTimeout()),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewTransport),

		fx.Provide(
			fx.Annotate(navitia.NewClient, fx.As(new(ingest.Provider)), fx.As(new(lib.LineCatalog))),
			fx.Annotate(ingest.NewStore, fx.As(new(ingest.DisruptionStore))),
			fx.Annotate(ingest.NewResolver, fx.As(new(ingest.SubscriptionResolver))),
		),

		fx.Provide(senders.NewSenderRegistry),
		fx.Provide(fx.Annotate(senders.NewGateway, fx.As(new(ingest.Gateway)))),

		fx.Provide(fx.Annotate(ingest.NewOrchestrator, fx.As(new(ingest.CycleRunner)))),
		fx.Provide(ingest.NewScheduler),
		fx.Provide(func(s *ingest.Scheduler) lib.CycleTrigger { return s }),

		fx.Provide(lib.NewService),
		fx.Provide(app.NewHTTPServer),

		fx.Invoke(func(*http.Server, *ingest.Scheduler) {}),
	).Run()
}
