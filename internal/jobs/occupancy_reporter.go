package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"codenow/internal/metrics"
	"codenow/internal/models"
	"codenow/internal/utils"
)

// OccupancySource is the read side of the session the reporter needs.
type OccupancySource interface {
	Occupancy() models.Occupancy
}

// OccupancyReporter periodically logs session occupancy and refreshes the
// connection gauges.
type OccupancyReporter struct {
	source   OccupancySource
	schedule string
	log      *zap.Logger
	cron     *cron.Cron
}

func NewOccupancyReporter(source OccupancySource, schedule string, log *zap.Logger) *OccupancyReporter {
	return &OccupancyReporter{
		source:   source,
		schedule: schedule,
		log:      utils.OrNop(log),
		cron:     cron.New(),
	}
}

// Start schedules the report. An empty schedule disables the job.
func (r *OccupancyReporter) Start() error {
	if r.schedule == "" {
		r.log.Info("occupancy reporter disabled")
		return nil
	}
	if _, err := r.cron.AddFunc(r.schedule, r.Report); err != nil {
		return fmt.Errorf("failed to schedule occupancy reporter: %w", err)
	}
	r.cron.Start()
	r.log.Info("occupancy reporter started", zap.String("schedule", r.schedule))
	return nil
}

// Stop waits for a running report to finish.
func (r *OccupancyReporter) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

func (r *OccupancyReporter) Report() {
	o := r.source.Occupancy()
	metrics.SetOccupancy(o.CurrentEditors, o.Viewers, o.MaxEditors)
	r.log.Info("session occupancy",
		zap.Int("connections", o.Connections),
		zap.Int("editors", o.CurrentEditors),
		zap.Int("viewers", o.Viewers),
		zap.Int("maxEditors", o.MaxEditors),
		zap.String("language", string(o.Language)))
}
