package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, status, proposer_id, proposer_slot_id, recipient_id, counterpart_slot_id, version, created_at, updated_at, resolved_at`

type PostgresSwapRequestRepository struct {
	*base.Repository
}

func NewSwapRequestRepository(q base.Querier) *PostgresSwapRequestRepository {
	return &PostgresSwapRequestRepository{Repository: base.NewRepository(q)}
}

// Create создаёт запрос на обмен. ID генерируется вызывающим кодом.
func (r *PostgresSwapRequestRepository) Create(ctx context.Context, req *model.SwapRequest) error {
	query := `
		INSERT INTO swap_requests (id, status, proposer_id, proposer_slot_id, recipient_id, counterpart_slot_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING version, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		req.ID,
		req.Status,
		req.ProposerID,
		req.ProposerSlotID,
		req.RecipientID,
		req.CounterpartSlotID,
	).Scan(&req.Version, &req.CreatedAt, &req.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create swap request: %w", base.Classify(err))
	}

	return nil
}

// GetByID получает запрос по ID
func (r *PostgresSwapRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SwapRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM swap_requests WHERE id = $1`

	req, err := scanRequest(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get swap request by id: %w", err)
	}

	return req, nil
}

// Resolve фиксирует решение по запросу
func (r *PostgresSwapRequestRepository) Resolve(ctx context.Context, id uuid.UUID, expectVersion int64, status model.SwapStatus, at time.Time) (*model.SwapRequest, error) {
	query := `
		UPDATE swap_requests
		SET status = $3, resolved_at = $4, updated_at = $4, version = version + 1
		WHERE id = $1 AND version = $2 AND status = 'pending'
		RETURNING ` + requestColumns

	req, err := scanRequest(r.QueryRow(ctx, query, id, expectVersion, status, at))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, fmt.Errorf("resolve swap request %s: %w", id, model.ErrConflict)
		}
		return nil, fmt.Errorf("resolve swap request %s: %w", id, base.Classify(err))
	}

	return req, nil
}

// ListPendingViews получает pending запросы пользователя вместе с обоими слотами
func (r *PostgresSwapRequestRepository) ListPendingViews(ctx context.Context, userID string, side RequestSide) ([]*model.RequestView, error) {
	column := "r.recipient_id"
	if side == SideOutgoing {
		column = "r.proposer_id"
	}

	query := `
		SELECT r.id, r.status, r.proposer_id, r.proposer_slot_id, r.recipient_id, r.counterpart_slot_id,
		       r.version, r.created_at, r.updated_at, r.resolved_at,
		       ps.id, ps.title, ps.start_time, ps.end_time, ps.owner_id, ps.status, ps.version, ps.created_at, ps.updated_at,
		       cs.id, cs.title, cs.start_time, cs.end_time, cs.owner_id, cs.status, cs.version, cs.created_at, cs.updated_at
		FROM swap_requests r
		JOIN slots ps ON ps.id = r.proposer_slot_id
		JOIN slots cs ON cs.id = r.counterpart_slot_id
		WHERE ` + column + ` = $1
		  AND r.status = 'pending'
		ORDER BY r.created_at, r.id
	`

	rows, err := r.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get %s requests: %w", side, err)
	}
	defer rows.Close()

	var views []*model.RequestView
	for rows.Next() {
		var (
			req model.SwapRequest
			ps  model.Slot
			cs  model.Slot
		)
		err := rows.Scan(
			&req.ID, &req.Status, &req.ProposerID, &req.ProposerSlotID, &req.RecipientID, &req.CounterpartSlotID,
			&req.Version, &req.CreatedAt, &req.UpdatedAt, &req.ResolvedAt,
			&ps.ID, &ps.Title, &ps.StartTime, &ps.EndTime, &ps.OwnerID, &ps.Status, &ps.Version, &ps.CreatedAt, &ps.UpdatedAt,
			&cs.ID, &cs.Title, &cs.StartTime, &cs.EndTime, &cs.OwnerID, &cs.Status, &cs.Version, &cs.CreatedAt, &cs.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan request view: %w", err)
		}
		views = append(views, &model.RequestView{Request: &req, ProposerSlot: &ps, CounterpartSlot: &cs})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request views: %w", err)
	}

	return views, nil
}

func scanRequest(row pgx.Row) (*model.SwapRequest, error) {
	var req model.SwapRequest
	err := row.Scan(
		&req.ID,
		&req.Status,
		&req.ProposerID,
		&req.ProposerSlotID,
		&req.RecipientID,
		&req.CounterpartSlotID,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
