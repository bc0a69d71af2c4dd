package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
)

// Parameter key variants checked when matching make/model inside the
// source_parameters jsonb column.
const (
	makeExpr  = `COALESCE(source_parameters->>'Marka pojazdu', source_parameters->>'make', source_parameters->>'Marka', source_parameters->>'brand')`
	modelExpr = `COALESCE(source_parameters->>'Model pojazdu', source_parameters->>'model', source_parameters->>'Model')`
)

// needsAnalysisExpr mirrors the pipeline's required-steps derivation: any
// missing enrichment field marks the record as needing analysis. An empty
// market value string counts as missing; a fit score of 0 does not.
const needsAnalysisExpr = `(
		description IS NULL
		OR ai_data_sanity_check IS NULL
		OR personal_fit_score IS NULL
		OR ai_mechanic_report IS NULL
		OR COALESCE(market_value_score, '') = ''
		OR ai_priority_rating IS NULL
	)`

// ListVehicles retrieves records matching the filters, newest first.
func (r *vehicleRepository) ListVehicles(ctx context.Context, filters VehicleFilters) ([]*models.VehicleRecord, error) {
	query := `SELECT * FROM vehicles WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filters.Status)
		argIndex++
	} else {
		query += fmt.Sprintf(" AND status <> $%d", argIndex)
		args = append(args, models.StatusDeleted)
		argIndex++
	}

	if filters.Source != nil {
		query += fmt.Sprintf(" AND source = $%d", argIndex)
		args = append(args, *filters.Source)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filters.Limit)
		argIndex++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filters.Offset)
	}

	var vehicles []*models.VehicleRecord
	if err := r.db.SelectContext(ctx, &vehicles, query, args...); err != nil {
		r.logger.Error("Failed to list vehicles", zap.Error(err))
		return nil, apperrors.NewDatabaseError("failed to list vehicles").WithCause(err)
	}
	return vehicles, nil
}

// FindComparables retrieves candidate comparables for one make/model
// within the configured year and mileage windows, excluding soft-deleted
// records and the target itself.
func (r *vehicleRepository) FindComparables(ctx context.Context, query models.ComparableQuery) ([]models.ComparableRecord, error) {
	sqlQuery := fmt.Sprintf(`
		SELECT id, price_eur, mileage, year, source_parameters
		FROM vehicles
		WHERE source = $1
		  AND %s ILIKE $2
		  AND %s ILIKE $3
		  AND year BETWEEN $4 AND $5
		  AND mileage BETWEEN $6 AND $7
		  AND status <> $8
		  AND id <> $9
		  AND price_eur > 0`, makeExpr, modelExpr)

	minMileage := query.Mileage - r.criteria.MileageRangeKm
	if minMileage < 0 {
		minMileage = 0
	}

	var comparables []models.ComparableRecord
	err := r.db.SelectContext(ctx, &comparables, sqlQuery,
		query.Source,
		query.Make,
		query.Model,
		query.Year-r.criteria.YearRange,
		query.Year+r.criteria.YearRange,
		minMileage,
		query.Mileage+r.criteria.MileageRangeKm,
		models.StatusDeleted,
		query.ExcludeID,
	)
	if err != nil {
		r.logger.Error("Failed to find comparables",
			zap.Error(err),
			zap.String("make", query.Make),
			zap.String("model", query.Model))
		return nil, apperrors.NewDatabaseError("failed to find comparables").WithCause(err)
	}
	return comparables, nil
}

// FindVehiclesNeedingAnalysis retrieves active records with at least one
// enrichment field still missing, oldest first so a backlog drains in
// ingestion order.
func (r *vehicleRepository) FindVehiclesNeedingAnalysis(ctx context.Context) ([]*models.VehicleRecord, error) {
	query := fmt.Sprintf(`
		SELECT * FROM vehicles
		WHERE status <> $1 AND %s
		ORDER BY created_at ASC`, needsAnalysisExpr)

	var vehicles []*models.VehicleRecord
	if err := r.db.SelectContext(ctx, &vehicles, query, models.StatusDeleted); err != nil {
		r.logger.Error("Failed to find vehicles needing analysis", zap.Error(err))
		return nil, apperrors.NewDatabaseError("failed to find vehicles needing analysis").WithCause(err)
	}
	return vehicles, nil
}

// FindVehiclesNeedingTranslation retrieves active records without a
// translated description; force retrieves every active record so
// translations can be regenerated.
func (r *vehicleRepository) FindVehiclesNeedingTranslation(ctx context.Context, force bool) ([]*models.VehicleRecord, error) {
	query := `SELECT * FROM vehicles WHERE status <> $1`
	if !force {
		query += ` AND description IS NULL`
	}
	query += ` ORDER BY created_at ASC`

	var vehicles []*models.VehicleRecord
	if err := r.db.SelectContext(ctx, &vehicles, query, models.StatusDeleted); err != nil {
		r.logger.Error("Failed to find vehicles needing translation", zap.Error(err))
		return nil, apperrors.NewDatabaseError("failed to find vehicles needing translation").WithCause(err)
	}
	return vehicles, nil
}

// UpdateVehicleAnalysis persists the enrichment fields produced by one
// pipeline pass in a single statement. Fails with NotFound when the record
// is gone.
func (r *vehicleRepository) UpdateVehicleAnalysis(ctx context.Context, id uuid.UUID, update models.AnalysisUpdate) error {
	if update.Empty() {
		return nil
	}

	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argIndex := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Features != nil {
		add("features", update.Features)
	}
	if update.PersonalFitScore != nil {
		add("personal_fit_score", *update.PersonalFitScore)
	}
	if update.MarketValueScore != nil {
		add("market_value_score", *update.MarketValueScore)
	}
	if update.AIPriorityRating != nil {
		add("ai_priority_rating", *update.AIPriorityRating)
	}
	if update.AIPrioritySummary != nil {
		add("ai_priority_summary", *update.AIPrioritySummary)
	}
	if update.AIMechanicReport != nil {
		add("ai_mechanic_report", *update.AIMechanicReport)
	}
	if update.AIDataSanityCheck != nil {
		add("ai_data_sanity_check", *update.AIDataSanityCheck)
	}

	query := fmt.Sprintf("UPDATE vehicles SET %s WHERE id = $%d", joinSets(sets), argIndex)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update vehicle analysis", zap.Error(err), zap.String("id", id.String()))
		return apperrors.NewDatabaseError("failed to update vehicle analysis").WithCause(err)
	}
	if err := requireRowAffected(result, id); err != nil {
		return err
	}

	r.logger.Info("Vehicle analysis updated",
		zap.String("id", id.String()),
		zap.Int("fields", len(sets)-1))
	return nil
}

func joinSets(sets []string) string {
	return strings.Join(sets, ", ")
}
