package authz

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/store"
)

// Store resolves OIDC subjects to local users and manages role
// assignments per property.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ResolveSubject maps an OIDC `sub` claim to a local users.id,
// creating the user row on first sight (spec §4.11 is silent on
// provisioning; a new verified subject is not yet a security
// decision — it carries no role until one is explicitly granted).
func (s *Store) ResolveSubject(ctx context.Context, subject, email string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM users WHERE oidc_subject = $1`, subject).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !store.IsNoRows(err) {
		return "", apperr.Transient(apperr.CodeTransientFailure, "users lookup failed", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (oidc_subject, email) VALUES ($1, $2)
		ON CONFLICT (oidc_subject) DO UPDATE SET email = EXCLUDED.email
		RETURNING id`,
		subject, email).Scan(&id)
	if err != nil {
		return "", apperr.Transient(apperr.CodeTransientFailure, "users insert failed", err)
	}
	return id, nil
}

// RoleForProperty loads a user's role for a property. No row means no
// access: the caller should treat it as the lowest possible level,
// never as an error that could be mistaken for a transient failure.
func (s *Store) RoleForProperty(ctx context.Context, userID, propertyID string) (Role, bool, error) {
	var role string
	err := s.pool.QueryRow(ctx, `
		SELECT role FROM property_roles WHERE user_id = $1 AND property_id = $2`,
		userID, propertyID).Scan(&role)
	if err != nil {
		if store.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, apperr.Transient(apperr.CodeTransientFailure, "property_roles lookup failed", err)
	}
	return Role(role), true, nil
}

// GrantRole upserts a user's role for a property.
func (s *Store) GrantRole(ctx context.Context, userID, propertyID string, role Role) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO property_roles (user_id, property_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, property_id) DO UPDATE SET role = EXCLUDED.role`,
		userID, propertyID, role)
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "property_roles upsert failed", err)
	}
	return nil
}

// RevokeRole removes a user's role for a property, refusing the
// removal if it would leave the property with zero owners (spec
// §4.11's last-owner-remove protection, fail-closed with a 400).
func (s *Store) RevokeRole(ctx context.Context, userID, propertyID string) error {
	var role string
	err := s.pool.QueryRow(ctx, `
		SELECT role FROM property_roles WHERE user_id = $1 AND property_id = $2`,
		userID, propertyID).Scan(&role)
	if err != nil {
		if store.IsNoRows(err) {
			return nil
		}
		return apperr.Transient(apperr.CodeTransientFailure, "property_roles lookup failed", err)
	}

	if Role(role) == RoleOwner {
		var ownerCount int
		if err := s.pool.QueryRow(ctx, `
			SELECT count(*) FROM property_roles WHERE property_id = $1 AND role = $2`,
			propertyID, RoleOwner).Scan(&ownerCount); err != nil {
			return apperr.Transient(apperr.CodeTransientFailure, "owner count query failed", err)
		}
		if ownerCount <= 1 {
			return apperr.Validation(apperr.CodeInvalidInput, "cannot remove the last owner of a property")
		}
	}

	if _, err := s.pool.Exec(ctx, `
		DELETE FROM property_roles WHERE user_id = $1 AND property_id = $2`,
		userID, propertyID); err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "property_roles delete failed", err)
	}
	return nil
}
