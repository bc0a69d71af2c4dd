// Package analysis runs the resumable per-vehicle enrichment pipeline. The
// work remaining for a record is derived from which enrichment fields are
// still null, so re-running the pipeline is idempotent and a crashed batch
// picks up where it left off.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/ai"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
)

// Step is one enrichment operation of the pipeline.
type Step string

const (
	StepTranslate      Step = "translate"
	StepSanityCheck    Step = "sanity_check"
	StepFitScore       Step = "fit_score"
	StepMechanicReport Step = "mechanic_report"
	StepMarketValue    Step = "market_value"
	StepPriorityRating Step = "priority_rating"
)

// stepOrder fixes execution order: later steps read earlier steps' output
// (the priority rating consumes the fit score, sanity check and market
// value).
var stepOrder = []Step{
	StepTranslate,
	StepSanityCheck,
	StepFitScore,
	StepMechanicReport,
	StepMarketValue,
	StepPriorityRating,
}

// neutralFitScore is persisted when fit scoring fails, so the record does
// not get stuck re-running the step forever.
const neutralFitScore = 5.0

// Advisor produces the AI-generated enrichment artifacts.
type Advisor interface {
	TranslateVehicleContent(ctx context.Context, vehicle *models.VehicleRecord) (*ai.Translation, error)
	GeneratePersonalFitScore(ctx context.Context, vehicle *models.VehicleRecord) (float64, error)
	GeneratePriorityRating(ctx context.Context, vehicle *models.VehicleRecord) (*ai.PriorityRating, error)
	GenerateMechanicReport(ctx context.Context, vehicle *models.VehicleRecord) (string, error)
	GenerateDataSanityCheck(ctx context.Context, vehicle *models.VehicleRecord) (string, error)
}

// RecordStore is the repository surface the pipeline needs.
type RecordStore interface {
	FindVehiclesNeedingAnalysis(ctx context.Context) ([]*models.VehicleRecord, error)
	UpdateVehicleAnalysis(ctx context.Context, id uuid.UUID, update models.AnalysisUpdate) error
}

// MarketValuer computes the market value score for one record, nil when no
// estimate is possible.
type MarketValuer interface {
	Calculate(ctx context.Context, target *models.VehicleRecord) *string
}

// Failure describes one failed step, kept for the run summary.
type Failure struct {
	VehicleID uuid.UUID
	Title     string
	URL       string
	Step      Step
	Message   string
	Code      apperrors.ErrorCode
	Retryable bool
}

// Summary aggregates one pipeline run.
type Summary struct {
	Processed    int
	Completed    int
	Failed       int
	Skipped      int
	StepFailures map[Step]int
	Failures     []Failure
}

// Orchestrator coordinates the pipeline over its collaborators.
type Orchestrator struct {
	store   RecordStore
	advisor Advisor
	valuer  MarketValuer
	logger  *zap.Logger
	metrics *metrics.ApplicationMetrics
	delay   time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithInterRecordDelay spaces out records to stay under external rate
// limits.
func WithInterRecordDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.delay = d }
}

func WithMetrics(m *metrics.ApplicationMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func NewOrchestrator(store RecordStore, advisor Advisor, valuer MarketValuer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		advisor: advisor,
		valuer:  valuer,
		logger:  zap.L(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// requiredSteps recomputes the missing work from the record's current
// enrichment fields. A fit score of 0 is a valid completed score, only nil
// re-triggers the step; an empty market value string counts as missing.
func requiredSteps(v *models.VehicleRecord) []Step {
	var steps []Step
	if v.Description == nil {
		steps = append(steps, StepTranslate)
	}
	if v.AIDataSanityCheck == nil {
		steps = append(steps, StepSanityCheck)
	}
	if v.PersonalFitScore == nil {
		steps = append(steps, StepFitScore)
	}
	if v.AIMechanicReport == nil {
		steps = append(steps, StepMechanicReport)
	}
	if v.MarketValueScore == nil || *v.MarketValueScore == "" {
		steps = append(steps, StepMarketValue)
	}
	if v.AIPriorityRating == nil {
		steps = append(steps, StepPriorityRating)
	}
	return steps
}

// Run processes every record the repository reports as needing analysis.
// Failures never abort the batch; the returned summary accounts for every
// record.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	vehicles, err := o.store.FindVehiclesNeedingAnalysis(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{StepFailures: make(map[Step]int)}
	o.logger.Info("Starting analysis run", zap.Int("vehicles", len(vehicles)))

	for i, vehicle := range vehicles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if i > 0 && o.delay > 0 {
			select {
			case <-time.After(o.delay):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}

		failures, skipped := o.processVehicle(ctx, vehicle, summary)
		summary.Processed++
		switch {
		case len(failures) > 0:
			summary.Failed++
			summary.Failures = append(summary.Failures, failures...)
		case skipped:
			summary.Skipped++
		default:
			summary.Completed++
		}
	}

	o.logger.Info("Analysis run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

// processVehicle runs the missing steps for one record and persists their
// output in a single batched update. Translation failure aborts the record;
// any other step failure is recorded and the pipeline moves on to the next
// step.
func (o *Orchestrator) processVehicle(ctx context.Context, vehicle *models.VehicleRecord, summary *Summary) ([]Failure, bool) {
	steps := requiredSteps(vehicle)
	if len(steps) == 0 {
		o.logger.Debug("Vehicle already fully analyzed",
			zap.String("vehicle_id", vehicle.ID.String()))
		return nil, true
	}

	o.logger.Info("Analyzing vehicle",
		zap.String("vehicle_id", vehicle.ID.String()),
		zap.String("title", vehicle.Title),
		zap.Int("steps", len(steps)))

	needed := make(map[Step]bool, len(steps))
	for _, s := range steps {
		needed[s] = true
	}

	var update models.AnalysisUpdate
	var failures []Failure

	for _, step := range stepOrder {
		if !needed[step] {
			continue
		}
		start := time.Now()
		err := o.runStep(ctx, step, vehicle, &update)
		if o.metrics != nil {
			o.metrics.RecordAnalysisStep(string(step), err == nil, time.Since(start))
		}
		if err != nil {
			failures = append(failures, o.recordFailure(summary, vehicle, step, err))
			if step == StepTranslate {
				// Translation is foundational; the remaining steps would
				// analyze untranslated content.
				break
			}
		}
	}

	if update.Empty() {
		return failures, false
	}
	if err := o.store.UpdateVehicleAnalysis(ctx, vehicle.ID, update); err != nil {
		failures = append(failures, o.recordFailure(summary, vehicle, "persist", err))
	}
	return failures, false
}

// runStep executes one step, writing its output both into the batched
// update and onto the in-memory record so later steps see it.
func (o *Orchestrator) runStep(ctx context.Context, step Step, vehicle *models.VehicleRecord, update *models.AnalysisUpdate) error {
	switch step {
	case StepTranslate:
		translation, err := o.advisor.TranslateVehicleContent(ctx, vehicle)
		if err != nil {
			return err
		}
		update.Description = &translation.Description
		update.Features = models.StringList(translation.Features)
		vehicle.Description = &translation.Description
		vehicle.Features = update.Features

	case StepSanityCheck:
		report, err := o.advisor.GenerateDataSanityCheck(ctx, vehicle)
		if err != nil {
			return err
		}
		update.AIDataSanityCheck = &report
		vehicle.AIDataSanityCheck = &report

	case StepFitScore:
		score, err := o.advisor.GeneratePersonalFitScore(ctx, vehicle)
		if err != nil {
			score = neutralFitScore
			update.PersonalFitScore = &score
			vehicle.PersonalFitScore = &score
			return err
		}
		update.PersonalFitScore = &score
		vehicle.PersonalFitScore = &score

	case StepMechanicReport:
		report, err := o.advisor.GenerateMechanicReport(ctx, vehicle)
		if err != nil {
			return err
		}
		update.AIMechanicReport = &report
		vehicle.AIMechanicReport = &report

	case StepMarketValue:
		score := o.valuer.Calculate(ctx, vehicle)
		if score != nil {
			update.MarketValueScore = score
			vehicle.MarketValueScore = score
		}

	case StepPriorityRating:
		rating, err := o.advisor.GeneratePriorityRating(ctx, vehicle)
		if err != nil {
			return err
		}
		update.AIPriorityRating = &rating.Rating
		update.AIPrioritySummary = &rating.Summary
		vehicle.AIPriorityRating = &rating.Rating
		vehicle.AIPrioritySummary = &rating.Summary
	}
	return nil
}

func (o *Orchestrator) recordFailure(summary *Summary, vehicle *models.VehicleRecord, step Step, err error) Failure {
	summary.StepFailures[step]++
	failure := Failure{
		VehicleID: vehicle.ID,
		Title:     vehicle.Title,
		URL:       vehicle.SourceURL,
		Step:      step,
		Message:   err.Error(),
		Code:      apperrors.CodeOf(err),
		Retryable: apperrors.IsRetryable(err),
	}
	o.logger.Warn("Analysis step failed",
		zap.String("vehicle_id", failure.VehicleID.String()),
		zap.String("title", failure.Title),
		zap.String("url", failure.URL),
		zap.String("step", string(failure.Step)),
		zap.String("code", string(failure.Code)),
		zap.Bool("retryable", failure.Retryable),
		zap.Error(err))
	return failure
}
