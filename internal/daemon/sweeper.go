package daemon

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, logging.Error(err))...)
}

// newSweeper schedules SweepExpired. It returns nil when the TTL or the
// schedule is disabled.
func (d *Daemon) newSweeper() (*cron.Cron, error) {
	spec := strings.TrimSpace(d.cfg.Registry.SweepSchedule)
	if spec == "" || d.cfg.ProjectTTL() <= 0 {
		return nil, nil
	}
	logger := cronLogger{logger: logging.NewComponentLogger(d.logger, "sweeper")}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, d.sweep); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "sweeper", "invalid registry.sweep_schedule "+spec, err)
	}
	return c, nil
}

func (d *Daemon) sweep() {
	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	d.registry.SweepExpired(ctx, time.Now())
}
