package service

import (
	"context"
	"time"

	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/tenant"
)

// PharmacyScanner is satisfied by AlertScanner
type PharmacyScanner interface {
	ScanPharmacy(ctx context.Context) (int, error)
}

// ActivePharmacyLister is satisfied by repository.PharmacyRepository
type ActivePharmacyLister interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
}

// AlertScheduler runs digest scans periodically across all pharmacies.
// Each pharmacy is scanned under its own tenant context.
type AlertScheduler struct {
	scanner    PharmacyScanner
	pharmacies ActivePharmacyLister
	interval   time.Duration
	logger     *logger.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewAlertScheduler creates a new alert scheduler
func NewAlertScheduler(scanner PharmacyScanner, pharmacies ActivePharmacyLister, interval time.Duration, log *logger.Logger) *AlertScheduler {
	return &AlertScheduler{
		scanner:    scanner,
		pharmacies: pharmacies,
		interval:   interval,
		logger:     log.WithComponent("alert-scheduler"),
	}
}

// Start starts the scheduler in a background goroutine and runs a first
// cycle immediately
func (s *AlertScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("alert scheduler started")

		s.RunCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("alert scheduler stopped")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler and waits for the running cycle to return
func (s *AlertScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// RunCycle scans every active pharmacy once
func (s *AlertScheduler) RunCycle(ctx context.Context) {
	start := time.Now()

	pharmacyIDs, err := s.pharmacies.ListActiveIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query active pharmacies")
		return
	}

	digests := 0
	for _, pharmacyID := range pharmacyIDs {
		if ctx.Err() != nil {
			return
		}
		n, err := s.scanner.ScanPharmacy(tenant.WithTenantID(ctx, pharmacyID))
		if err != nil {
			s.logger.Error().Err(err).Str("pharmacy_id", pharmacyID).Msg("alert scan failed for pharmacy")
		}
		digests += n
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("pharmacy_count", len(pharmacyIDs)).
		Int("digests", digests).
		Msg("alert scan cycle completed")
}
