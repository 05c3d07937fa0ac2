package repository

import (
	"context"
	"fmt"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const slotColumns = `id, title, start_time, end_time, owner_id, status, version, created_at, updated_at`

type PostgresSlotRepository struct {
	*base.Repository
}

func NewSlotRepository(q base.Querier) *PostgresSlotRepository {
	return &PostgresSlotRepository{Repository: base.NewRepository(q)}
}

// Create создаёт новый слот
func (r *PostgresSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (id, title, start_time, end_time, owner_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING version, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		slot.ID,
		slot.Title,
		slot.StartTime,
		slot.EndTime,
		slot.OwnerID,
		slot.Status,
	).Scan(&slot.Version, &slot.CreatedAt, &slot.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create slot: %w", base.Classify(err))
	}

	return nil
}

// GetByID получает слот по ID
func (r *PostgresSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// Update условно обновляет владельца и статус слота
func (r *PostgresSlotRepository) Update(ctx context.Context, upd SlotUpdate) (*model.Slot, error) {
	query := `
		UPDATE slots
		SET owner_id = $5, status = $6, version = version + 1, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND status = $3 AND version = $4
		RETURNING ` + slotColumns

	slot, err := scanSlot(r.QueryRow(
		ctx, query,
		upd.ID,
		upd.ExpectOwner,
		upd.ExpectStatus,
		upd.ExpectVersion,
		upd.Owner,
		upd.Status,
	))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, fmt.Errorf("update slot %s: %w", upd.ID, model.ErrConflict)
		}
		return nil, fmt.Errorf("update slot %s: %w", upd.ID, base.Classify(err))
	}

	return slot, nil
}

// Delete удаляет слот, если он не участвует в обмене и не менялся с момента чтения
func (r *PostgresSlotRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string, expectVersion int64) error {
	query := `
		DELETE FROM slots
		WHERE id = $1 AND owner_id = $2 AND version = $3 AND status <> 'pending_exchange'
	`

	affected, err := r.ExecAffected(ctx, query, id, ownerID, expectVersion)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete slot %s: %w", id, model.ErrConflict)
	}

	return nil
}

// ListByOwner получает все слоты владельца
func (r *PostgresSlotRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE owner_id = $1
		ORDER BY start_time, id
	`

	rows, err := r.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get slots by owner: %w", err)
	}

	return collectSlots(rows)
}

// ListTradeable получает слоты, выставленные на обмен другими пользователями
func (r *PostgresSlotRepository) ListTradeable(ctx context.Context, excludeOwnerID string) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE status = 'tradeable'
		  AND owner_id <> $1
		ORDER BY start_time, id
	`

	rows, err := r.Query(ctx, query, excludeOwnerID)
	if err != nil {
		return nil, fmt.Errorf("get tradeable slots: %w", err)
	}

	return collectSlots(rows)
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.Title,
		&slot.StartTime,
		&slot.EndTime,
		&slot.OwnerID,
		&slot.Status,
		&slot.Version,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !slot.Status.Valid() {
		return nil, fmt.Errorf("%w: slot %s has unknown status %q", model.ErrStateCorrupted, slot.ID, slot.Status)
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.Slot, error) {
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}
