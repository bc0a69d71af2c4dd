// Package repository implements the Postgres persistence layer for vehicle
// records over sqlx.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
)

// uniqueViolation is the Postgres error code raised on the source_url
// unique index.
const uniqueViolation = "23505"

// VehicleFilters narrows ListVehicles.
type VehicleFilters struct {
	Status *models.VehicleStatus
	Source *models.Source
	Limit  int
	Offset int
}

// VehicleRepository defines the vehicle data access contract.
type VehicleRepository interface {
	// CRUD
	InsertVehicle(ctx context.Context, vehicle *models.VehicleRecord) error
	FindVehicleByID(ctx context.Context, id uuid.UUID) (*models.VehicleRecord, error)
	FindVehicleByURL(ctx context.Context, sourceURL string) (*models.VehicleRecord, error)
	UpdateVehicle(ctx context.Context, id uuid.UUID, update models.VehicleUpdate) error
	UpdateVehicleAnalysis(ctx context.Context, id uuid.UUID, update models.AnalysisUpdate) error

	// Queries
	ListVehicles(ctx context.Context, filters VehicleFilters) ([]*models.VehicleRecord, error)
	FindComparables(ctx context.Context, query models.ComparableQuery) ([]models.ComparableRecord, error)
	FindVehiclesNeedingAnalysis(ctx context.Context) ([]*models.VehicleRecord, error)
	FindVehiclesNeedingTranslation(ctx context.Context, force bool) ([]*models.VehicleRecord, error)
}

// vehicleRepository implements VehicleRepository.
type vehicleRepository struct {
	db       *sqlx.DB
	logger   *zap.Logger
	criteria models.MatchingCriteria
}

// NewVehicleRepository creates a vehicle repository. The matching criteria
// bound the comparable search windows.
func NewVehicleRepository(db *sqlx.DB, logger *zap.Logger, criteria models.MatchingCriteria) VehicleRepository {
	if criteria.YearRange == 0 {
		criteria.YearRange = 3
	}
	if criteria.MileageRangeKm == 0 {
		criteria.MileageRangeKm = 50000
	}
	return &vehicleRepository{
		db:       db,
		logger:   logger,
		criteria: criteria,
	}
}

// InsertVehicle persists a new record. A colliding source_url fails with a
// DuplicateVehicleError.
func (r *vehicleRepository) InsertVehicle(ctx context.Context, vehicle *models.VehicleRecord) error {
	if vehicle.ID == uuid.Nil {
		vehicle.ID = uuid.New()
	}
	now := time.Now().UTC()
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = now
	}
	if vehicle.UpdatedAt.IsZero() {
		vehicle.UpdatedAt = now
	}
	if vehicle.ScrapedAt.IsZero() {
		vehicle.ScrapedAt = now
	}
	if vehicle.Status == "" {
		vehicle.Status = models.StatusNew
	}

	query := `
		INSERT INTO vehicles (
			id, source, source_id, source_url, source_created_at,
			source_title, source_description_html, source_parameters,
			source_equipment, source_photos,
			title, description, features, price_pln, price_eur, year, mileage,
			seller_info, photos,
			personal_fit_score, market_value_score, ai_priority_rating,
			ai_priority_summary, ai_mechanic_report, ai_data_sanity_check,
			status, personal_notes, scraped_at, created_at, updated_at
		) VALUES (
			:id, :source, :source_id, :source_url, :source_created_at,
			:source_title, :source_description_html, :source_parameters,
			:source_equipment, :source_photos,
			:title, :description, :features, :price_pln, :price_eur, :year, :mileage,
			:seller_info, :photos,
			:personal_fit_score, :market_value_score, :ai_priority_rating,
			:ai_priority_summary, :ai_mechanic_report, :ai_data_sanity_check,
			:status, :personal_notes, :scraped_at, :created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, vehicle)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperrors.NewDuplicateVehicleError(vehicle.SourceURL)
		}
		r.logger.Error("Failed to insert vehicle", zap.Error(err), zap.String("source_url", vehicle.SourceURL))
		return apperrors.NewDatabaseError("failed to insert vehicle").WithCause(err)
	}

	r.logger.Info("Vehicle inserted",
		zap.String("id", vehicle.ID.String()),
		zap.String("source", string(vehicle.Source)),
		zap.String("source_url", vehicle.SourceURL))
	return nil
}

// FindVehicleByID retrieves one record by primary key.
func (r *vehicleRepository) FindVehicleByID(ctx context.Context, id uuid.UUID) (*models.VehicleRecord, error) {
	var vehicle models.VehicleRecord
	err := r.db.GetContext(ctx, &vehicle, `SELECT * FROM vehicles WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("vehicle not found: %s", id))
		}
		r.logger.Error("Failed to get vehicle by ID", zap.Error(err), zap.String("id", id.String()))
		return nil, apperrors.NewDatabaseError("failed to get vehicle").WithCause(err)
	}
	return &vehicle, nil
}

// FindVehicleByURL retrieves one record by its deduplication key.
func (r *vehicleRepository) FindVehicleByURL(ctx context.Context, sourceURL string) (*models.VehicleRecord, error) {
	var vehicle models.VehicleRecord
	err := r.db.GetContext(ctx, &vehicle, `SELECT * FROM vehicles WHERE source_url = $1`, sourceURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("vehicle not found: %s", sourceURL))
		}
		r.logger.Error("Failed to get vehicle by URL", zap.Error(err), zap.String("source_url", sourceURL))
		return nil, apperrors.NewDatabaseError("failed to get vehicle").WithCause(err)
	}
	return &vehicle, nil
}

// UpdateVehicle applies the user-editable review fields.
func (r *vehicleRepository) UpdateVehicle(ctx context.Context, id uuid.UUID, update models.VehicleUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argIndex := 1

	if update.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *update.Status)
		argIndex++
	}
	if update.PersonalNotes != nil {
		sets = append(sets, fmt.Sprintf("personal_notes = $%d", argIndex))
		args = append(args, *update.PersonalNotes)
		argIndex++
	}

	query := fmt.Sprintf("UPDATE vehicles SET %s WHERE id = $%d", joinSets(sets), argIndex)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update vehicle", zap.Error(err), zap.String("id", id.String()))
		return apperrors.NewDatabaseError("failed to update vehicle").WithCause(err)
	}
	return requireRowAffected(result, id)
}

func requireRowAffected(result sql.Result, id uuid.UUID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError("failed to read update result").WithCause(err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("vehicle not found: %s", id))
	}
	return nil
}
