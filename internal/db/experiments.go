package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/trafficbandit/allocator/internal/apperr"
)

// CreateExperiment inserts one experiment row plus N variant rows
// atomically. Fails with NameConflict if the name already exists, or
// Validation if the variant shape in the data model's invariants isn't met.
func (db *DB) CreateExperiment(ctx context.Context, name, description string, variants []VariantInput) (*Experiment, error) {
	if err := validateVariantInputs(variants); err != nil {
		return nil, err
	}

	result, err := db.withBreaker(func() (interface{}, error) {
		return db.createExperimentTx(ctx, name, description, variants)
	})
	if err != nil {
		return nil, translateExperimentErr(err)
	}
	return result.(*Experiment), nil
}

func validateVariantInputs(variants []VariantInput) error {
	if len(variants) < 2 {
		return apperr.Field("variants", "an experiment requires at least 2 variants")
	}

	seen := make(map[string]bool, len(variants))
	controls := 0
	for _, v := range variants {
		if len(v.Name) < 1 || len(v.Name) > 100 {
			return apperr.Field("variants", fmt.Sprintf("variant name %q must be 1-100 characters", v.Name))
		}
		if seen[v.Name] {
			return apperr.Field("variants", fmt.Sprintf("duplicate variant name %q", v.Name))
		}
		seen[v.Name] = true
		if v.IsControl {
			controls++
		}
	}
	if controls < 1 {
		return apperr.Field("variants", "at least one variant must be the control")
	}
	return nil
}

func (db *DB) createExperimentTx(ctx context.Context, name, description string, variants []VariantInput) (*Experiment, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	experimentID := uuid.New().String()

	_, err = tx.Exec(ctx,
		`INSERT INTO experiments (id, name, description, status) VALUES ($1, $2, $3, 'active')`,
		experimentID, name, description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Newf(apperr.NameConflict, "experiment name %q already exists", name)
		}
		return nil, fmt.Errorf("failed to insert experiment: %w", err)
	}

	out := &Experiment{
		ID:          experimentID,
		Name:        name,
		Description: description,
		Status:      StatusActive,
	}

	for _, v := range variants {
		variantID := uuid.New().String()
		_, err = tx.Exec(ctx,
			`INSERT INTO variants (id, experiment_id, name, is_control) VALUES ($1, $2, $3, $4)`,
			variantID, experimentID, v.Name, v.IsControl,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert variant %q: %w", v.Name, err)
		}
		out.Variants = append(out.Variants, Variant{
			ID:           variantID,
			ExperimentID: experimentID,
			Name:         v.Name,
			IsControl:    v.IsControl,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	sortVariantsControlFirst(out.Variants)

	log.Info().Str("experiment_id", experimentID).Str("name", name).Msg("experiment created")
	return out, nil
}

// GetExperiment returns the experiment identified by idOrName (a UUID or an
// exact name match) with its variants in stable order: control first, then
// by name ascending.
func (db *DB) GetExperiment(ctx context.Context, idOrName string) (*Experiment, error) {
	result, err := db.withBreaker(func() (interface{}, error) {
		return db.getExperiment(ctx, idOrName)
	})
	if err != nil {
		return nil, translateExperimentErr(err)
	}
	return result.(*Experiment), nil
}

func (db *DB) getExperiment(ctx context.Context, idOrName string) (*Experiment, error) {
	var query string
	if _, err := uuid.Parse(idOrName); err == nil {
		query = `SELECT id, name, description, status, created_at, updated_at FROM experiments WHERE id = $1`
	} else {
		query = `SELECT id, name, description, status, created_at, updated_at FROM experiments WHERE name = $1`
	}

	var exp Experiment
	err := db.pool.QueryRow(ctx, query, idOrName).Scan(
		&exp.ID, &exp.Name, &exp.Description, &exp.Status, &exp.CreatedAt, &exp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.NotFound, "experiment %q not found", idOrName)
		}
		return nil, fmt.Errorf("failed to load experiment: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, experiment_id, name, is_control FROM variants WHERE experiment_id = $1 ORDER BY is_control DESC, name ASC`,
		exp.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ExperimentID, &v.Name, &v.IsControl); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		exp.Variants = append(exp.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	return &exp, nil
}

func sortVariantsControlFirst(variants []Variant) {
	for i := 1; i < len(variants); i++ {
		j := i
		for j > 0 && lessVariant(variants[j], variants[j-1]) {
			variants[j], variants[j-1] = variants[j-1], variants[j]
			j--
		}
	}
}

func lessVariant(a, b Variant) bool {
	if a.IsControl != b.IsControl {
		return a.IsControl
	}
	return a.Name < b.Name
}

func isUniqueViolation(err error) bool {
	return err != nil && (containsCode(err, "23505"))
}

func containsCode(err error, code string) bool {
	type sqlStater interface{ SQLState() string }
	var s sqlStater
	if errors.As(err, &s) {
		return s.SQLState() == code
	}
	return false
}

// translateExperimentErr promotes pool-level failures to
// apperr.UpstreamUnavailable unless the error is already a typed apperr.
func translateExperimentErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Wrap(apperr.UpstreamUnavailable, "database operation failed", err)
}
