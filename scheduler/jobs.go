package scheduler

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"travel_backend_project/cache"
	"travel_backend_project/models"
	"travel_backend_project/notify"
	"travel_backend_project/providers"
	"travel_backend_project/retry"
)

// Config holds the scheduler cadences and limits
type Config struct {
	HighInterval   time.Duration // HIGH tier refresh cadence
	MediumInterval time.Duration // MEDIUM tier refresh cadence
	LowInterval    time.Duration // LOW tier refresh cadence

	AlertSweepTime string // daily alert evaluation, "HH:MM" UTC
	CleanupTime    string // daily cleanup, "HH:MM" UTC

	MaxConcurrent    int           // concurrent job executions per process
	FailureCeiling   int           // consecutive failures before deactivation
	AlertCheckMinGap time.Duration // minimum gap between checks of one alert
	QuoteTTL         time.Duration // TTL for cached quote sets
	JobTimeout       time.Duration // wall-clock budget for one job execution
}

// DefaultConfig returns the production cadences
func DefaultConfig() Config {
	return Config{
		HighInterval:     15 * time.Minute,
		MediumInterval:   1 * time.Hour,
		LowInterval:      6 * time.Hour,
		AlertSweepTime:   "06:00",
		CleanupTime:      "03:00",
		MaxConcurrent:    5,
		FailureCeiling:   3,
		AlertCheckMinGap: 1 * time.Hour,
		QuoteTTL:         cache.DefaultQuoteTTL,
		JobTimeout:       2 * time.Minute,
	}
}

// tierInterval maps a priority tier to its refresh cadence
func (c Config) tierInterval(tier models.PriorityTier) time.Duration {
	switch tier {
	case models.TierHigh:
		return c.HighInterval
	case models.TierMedium:
		return c.MediumInterval
	default:
		return c.LowInterval
	}
}

// Stats is the scheduler's observable state
type Stats struct {
	IsRunning     bool   `json:"is_running"`
	TotalJobs     int64  `json:"total_jobs"`
	ActiveJobs    int64  `json:"active_jobs"`
	ActiveUpdates int    `json:"active_updates"`
	QueuedUpdates int64  `json:"queued_updates"`
	CacheMode     string `json:"cache_mode"`
}

// PriceScheduler refreshes tracked searches on tiered cadences, updates
// the price cache and evaluates user alerts. It owns its job store and
// holds its collaborators by injection; there are no package singletons.
type PriceScheduler struct {
	cron      *gocron.Scheduler
	db        *gorm.DB
	prices    *cache.PriceCache
	providers *providers.Registry
	sink      notify.Sink
	cfg       Config
	policy    retry.Policy

	sem     *semaphore.Weighted
	mu      sync.Mutex
	running map[string]bool // job IDs currently executing
	started bool

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
}

// NewPriceScheduler creates a scheduler instance. The notification sink
// may be nil, in which case notifications go to the log.
func NewPriceScheduler(db *gorm.DB, prices *cache.PriceCache, registry *providers.Registry, sink notify.Sink, cfg Config) *PriceScheduler {
	if sink == nil {
		sink = notify.LogSink{}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.FailureCeiling <= 0 {
		cfg.FailureCeiling = 3
	}
	rootCtx, cancel := context.WithCancel(context.Background())
	return &PriceScheduler{
		cron:      gocron.NewScheduler(time.UTC),
		db:        db,
		prices:    prices,
		providers: registry,
		sink:      sink,
		cfg:       cfg,
		policy:    retry.NetworkPolicy(),
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		running:   make(map[string]bool),
		rootCtx:   rootCtx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Start registers the tier timers and begins scheduling. Each tier runs
// on its own timer so a slow HIGH tick never stalls MEDIUM or LOW.
func (s *PriceScheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	log.Println("Starting price scheduler...")

	s.cron.Every(s.cfg.HighInterval).Do(func() {
		s.runTier(models.TierHigh)
	})
	s.cron.Every(s.cfg.MediumInterval).Do(func() {
		s.runTier(models.TierMedium)
	})
	s.cron.Every(s.cfg.LowInterval).Do(func() {
		s.runTier(models.TierLow)
	})

	// Evaluate user alerts daily
	s.cron.Every(1).Day().At(s.cfg.AlertSweepTime).Do(func() {
		s.runAlertSweep()
	})

	// Cleanup inactive jobs, stale history and orphaned indexes daily
	s.cron.Every(1).Day().At(s.cfg.CleanupTime).Do(func() {
		s.runCleanup()
	})

	s.cron.StartAsync()
	log.Println("Price scheduler started successfully")
}

// Stop stops scheduling and waits for in-flight executions to finish,
// so no job is left marked running inconsistently
func (s *PriceScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cron.Stop()
	s.wg.Wait()
	s.cancel()
	log.Println("Price scheduler stopped")
}

// IsRunning reports whether the scheduler is started
func (s *PriceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// AddJob registers a new monitoring job, due immediately
func (s *PriceScheduler) AddJob(kind models.SearchKind, params models.SearchParams, tier models.PriorityTier, ownerUserID string) (string, error) {
	if _, err := models.ParseSearchKind(string(kind)); err != nil {
		return "", err
	}
	if _, ok := models.ParsePriorityTier(string(tier)); !ok {
		return "", fmt.Errorf("unknown priority tier: %q", tier)
	}
	if len(params) == 0 {
		return "", fmt.Errorf("search params are required")
	}

	job := models.MonitoringJob{
		ID:           uuid.NewString(),
		Kind:         kind,
		SearchParams: params,
		PriorityTier: tier,
		OwnerUserID:  ownerUserID,
		NextDueAt:    s.now(),
		IsActive:     true,
	}
	if err := s.db.Create(&job).Error; err != nil {
		return "", fmt.Errorf("failed to create monitoring job: %w", err)
	}
	log.Printf("Added %s monitoring job %s (tier %s)", kind, job.ID, tier)
	return job.ID, nil
}

// RemoveJob deletes a monitoring job, reporting whether it existed
func (s *PriceScheduler) RemoveJob(jobID string) bool {
	result := s.db.Delete(&models.MonitoringJob{}, "id = ?", jobID)
	if result.Error != nil {
		log.Printf("Error removing job %s: %v", jobID, result.Error)
		return false
	}
	return result.RowsAffected > 0
}

// GetJob loads one monitoring job
func (s *PriceScheduler) GetJob(jobID string) (*models.MonitoringJob, bool) {
	var job models.MonitoringJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		return nil, false
	}
	return &job, true
}

// Stats returns the scheduler's observable state. A job that exhausted
// its failure ceiling stays in TotalJobs but leaves ActiveJobs.
func (s *PriceScheduler) Stats() Stats {
	stats := Stats{
		IsRunning: s.IsRunning(),
		CacheMode: s.prices.KV().Mode(),
	}
	s.db.Model(&models.MonitoringJob{}).Count(&stats.TotalJobs)
	s.db.Model(&models.MonitoringJob{}).Where("is_active = ?", true).Count(&stats.ActiveJobs)

	s.mu.Lock()
	stats.ActiveUpdates = len(s.running)
	s.mu.Unlock()

	s.db.Model(&models.MonitoringJob{}).
		Where("is_active = ? AND next_due_at <= ?", true, s.now()).
		Count(&stats.QueuedUpdates)
	stats.QueuedUpdates -= int64(stats.ActiveUpdates)
	if stats.QueuedUpdates < 0 {
		stats.QueuedUpdates = 0
	}
	return stats
}

// runTier executes one tick for a tier: select due active jobs in
// deterministic order and run them up to the concurrency cap. Jobs that
// don't get a slot stay pending for the next tick.
func (s *PriceScheduler) runTier(tier models.PriorityTier) {
	if !s.IsRunning() {
		return
	}
	now := s.now()

	var jobs []models.MonitoringJob
	err := s.db.
		Where("is_active = ? AND priority_tier = ? AND next_due_at <= ?", true, tier, now).
		Order("next_due_at asc, id asc").
		Find(&jobs).Error
	if err != nil {
		log.Printf("Error selecting due %s jobs: %v", tier, err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	launched := 0
	for i := range jobs {
		job := jobs[i]

		s.mu.Lock()
		if s.running[job.ID] {
			s.mu.Unlock()
			continue
		}
		if !s.sem.TryAcquire(1) {
			s.mu.Unlock()
			break // no free slot; the rest stay pending
		}
		s.running[job.ID] = true
		s.mu.Unlock()

		s.wg.Add(1)
		launched++
		go func() {
			defer func() {
				s.mu.Lock()
				delete(s.running, job.ID)
				s.mu.Unlock()
				s.sem.Release(1)
				s.wg.Done()
			}()
			s.executeJob(job)
		}()
	}
	log.Printf("Tier %s tick: %d due, %d launched", tier, len(jobs), launched)
}

// executeJob refreshes one search through the retry executor and
// records the outcome on the job
func (s *PriceScheduler) executeJob(job models.MonitoringJob) {
	ctx, cancel := context.WithTimeout(s.rootCtx, s.cfg.JobTimeout)
	defer cancel()

	offers, err := retry.Do(ctx, s.policy, func(ctx context.Context) ([]models.Offer, error) {
		return s.providers.Search(ctx, job.Kind, job.SearchParams)
	})

	switch retry.Classify(err) {
	case retry.OutcomeSuccess:
		s.handleSuccess(ctx, job, offers)
	case retry.OutcomeCancelled:
		// shutdown or caller cancel: not a failure, job stays due
		log.Printf("Job %s cancelled: %v", job.ID, err)
	default:
		s.handleFailure(job, err)
	}
}

// handleSuccess writes the refreshed quotes, diffs the lowest price
// against the prior cached lowest and schedules the next run
func (s *PriceScheduler) handleSuccess(ctx context.Context, job models.MonitoringJob, offers []models.Offer) {
	now := s.now()

	priorLowest, hadPrior := s.prices.CachedLowestPrice(ctx, job.Kind, job.SearchParams)
	s.prices.CachePrice(ctx, job.Kind, job.SearchParams, offers, s.cfg.QuoteTTL)

	if lowest := models.LowestOffer(offers); lowest != nil {
		if hadPrior && !priorLowest.Equal(lowest.Price.Total) {
			change := models.NewPriceChange(priorLowest, lowest.Price.Total)
			log.Printf("Job %s price change: %s -> %s (%.2f%%)",
				job.ID, change.Old, change.New, change.Percent)
		}
	}

	interval := jitterInterval(s.cfg.tierInterval(job.PriorityTier))
	updates := map[string]interface{}{
		"last_run_at":          now,
		"next_due_at":          now.Add(interval),
		"consecutive_failures": 0,
	}
	if err := s.db.Model(&models.MonitoringJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		log.Printf("Error updating job %s after success: %v", job.ID, err)
	}
}

// handleFailure escalates the backoff and deactivates the job once it
// reaches the failure ceiling. Deactivation is terminal; the job stays
// visible through Stats until cleanup purges it.
func (s *PriceScheduler) handleFailure(job models.MonitoringJob, cause error) {
	now := s.now()
	failures := job.ConsecutiveFailures + 1

	updates := map[string]interface{}{
		"last_run_at":          now,
		"consecutive_failures": failures,
	}
	if failures >= s.cfg.FailureCeiling {
		updates["is_active"] = false
		log.Printf("Job %s deactivated after %d consecutive failures: %v", job.ID, failures, cause)
	} else {
		// exponential penalty layered atop the tier cadence
		backoff := s.cfg.tierInterval(job.PriorityTier) + time.Duration(1<<uint(failures))*time.Minute
		updates["next_due_at"] = now.Add(backoff)
		log.Printf("Job %s failed (%d/%d), retrying in %s: %v",
			job.ID, failures, s.cfg.FailureCeiling, backoff, cause)
	}
	if err := s.db.Model(&models.MonitoringJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		log.Printf("Error updating job %s after failure: %v", job.ID, err)
	}
}

// jitterInterval spreads refreshes by +-10% so jobs added together
// don't refresh in lockstep
func jitterInterval(interval time.Duration) time.Duration {
	return time.Duration(float64(interval) * (0.9 + 0.2*rand.Float64()))
}
