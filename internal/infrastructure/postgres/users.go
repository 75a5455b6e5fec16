package postgres

import (
	"context"
	"errors"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetUser reads the users read-model. Profiles are owned by the auth collaborator.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var role, mobile string
	err := r.pool.QueryRow(ctx, `SELECT role, mobile_number FROM users WHERE id = $1`, id).Scan(&role, &mobile)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound("user not found")
		}
		return domain.User{}, err
	}
	parsed, _ := domain.ParseRole(role)
	return domain.User{ID: id, Role: parsed, MobileNumber: mobile}, nil
}
