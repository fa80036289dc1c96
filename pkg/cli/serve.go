package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kyohei-s/oboegaki/pkg/buffer"
	"github.com/kyohei-s/oboegaki/pkg/controller/health"
	"github.com/kyohei-s/oboegaki/pkg/service/whatsapp"
	"github.com/kyohei-s/oboegaki/pkg/usecase/cycle"
	"github.com/kyohei-s/oboegaki/pkg/usecase/extract"
	"github.com/kyohei-s/oboegaki/pkg/usecase/syncer"
	"github.com/kyohei-s/oboegaki/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var cfg config

	flags := runtimeFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sheetFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Listen to WhatsApp groups and sync extracted reminders to the sheet",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.New(cfg.logLevel, logging.Format(cfg.logFormat), os.Stdout)
			logging.SetDefault(logger)
			ctx = logging.With(ctx, logger)

			// Missing credentials are startup-fatal
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			sheets, err := cfg.newSheets(ctx)
			if err != nil {
				return err
			}

			buf := buffer.New()
			runner := cycle.New(buf,
				extract.New(gemini),
				syncer.New(sheets),
				cycle.WithInterval(cfg.interval),
			)

			listener, err := whatsapp.New(cfg.storePath, runner.OnMessage)
			if err != nil {
				return goerr.Wrap(err, "failed to prepare whatsapp listener")
			}

			if err := listener.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start whatsapp listener")
			}

			runner.Start(ctx)

			healthSrv := health.New(cfg.addr, runner)
			healthSrv.Start(ctx)

			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-sigCtx.Done()

			logger.Info("shutting down")
			runner.Stop()
			if err := listener.Stop(); err != nil {
				logger.Warn("whatsapp listener shutdown failed", "error", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := healthSrv.Stop(shutdownCtx); err != nil {
				logger.Warn("health server shutdown failed", "error", err)
			}

			return nil
		},
	}
}
