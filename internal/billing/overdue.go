package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"dentaldesk/internal/log"
)

// OverdueScheduler periodically marks past-due invoices Overdue for a set of tenants
type OverdueScheduler struct {
	svc     *Service
	spec    string
	tenants []string
	cron    *cron.Cron
}

// NewOverdueScheduler validates the cron spec and prepares the scheduler
func NewOverdueScheduler(svc *Service, spec string, tenants []string) (*OverdueScheduler, error) {
	if spec == "" {
		spec = "@hourly"
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid overdue schedule %q: %w", spec, err)
	}
	return &OverdueScheduler{
		svc:     svc,
		spec:    spec,
		tenants: tenants,
		cron:    cron.New(),
	}, nil
}

// Start registers the sweep and starts the cron loop
func (o *OverdueScheduler) Start() error {
	if _, err := o.cron.AddFunc(o.spec, func() { o.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule overdue sweep: %w", err)
	}
	o.cron.Start()
	log.Info("Overdue sweep scheduled (%s) for %d tenant(s)", o.spec, len(o.tenants))
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish
func (o *OverdueScheduler) Stop() {
	<-o.cron.Stop().Done()
}

// RunOnce sweeps every tenant and returns the number of invoices changed
func (o *OverdueScheduler) RunOnce(ctx context.Context) int {
	total := 0
	for _, tenant := range o.tenants {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		n, err := o.svc.SweepOverdue(ctx, tenant)
		cancel()
		if err != nil {
			log.Error("Overdue sweep failed for tenant %s: %v", tenant, err)
			continue
		}
		if n > 0 {
			log.Info("Marked %d invoice(s) overdue for tenant %s", n, tenant)
		}
		total += n
	}
	return total
}
