package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"nourish/internal/billing"
	"nourish/internal/types"
)

// UserRepo implements billing.UserStore on PostgreSQL.
//
// Key invariants:
//   - Every write is a single-column upsert: the subscription and
//     referral_code columns are owned by this processor, everything else on
//     the row belongs to the mobile client's profile sync and is preserved.
//   - DemoteSubscriptions is one UPDATE statement, atomic as a unit, which
//     is what makes the janitor's batch demotion safe under concurrent
//     deliveries.
type UserRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewUserRepo creates a UserRepo backed by the given database connection
// (pool or transaction).
func NewUserRepo(db DBTX, logger *slog.Logger) *UserRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserRepo{db: db, logger: logger}
}

// Compile-time assertion that UserRepo satisfies the store contract.
var _ billing.UserStore = (*UserRepo)(nil)

// GetUser returns the user document, or (nil, nil) when no row exists.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (*types.UserDocument, error) {
	var (
		doc     types.UserDocument
		subData []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, COALESCE(referral_code, ''), subscription, updated_at
		 FROM users
		 WHERE id = $1`,
		userID,
	).Scan(&doc.ID, &doc.ReferralCode, &subData, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(subData) > 0 {
		rec := &types.SubscriptionRecord{}
		if err := rec.Scan(subData); err != nil {
			return nil, err
		}
		doc.Subscription = rec
	}

	return &doc, nil
}

// UpsertSubscription merge-writes the subscription record, creating the user
// row if it does not exist yet. Re-running the same upsert is harmless,
// which is what makes provider redelivery safe.
func (r *UserRepo) UpsertSubscription(ctx context.Context, userID string, rec types.SubscriptionRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, subscription, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET subscription = EXCLUDED.subscription,
		     updated_at = EXCLUDED.updated_at`,
		userID,
		rec,
		rec.UpdatedAt,
	)
	return err
}

// UpdateReferralCode merge-writes the denormalized referral code.
func (r *UserRepo) UpdateReferralCode(ctx context.Context, userID string, code string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, referral_code, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET referral_code = EXCLUDED.referral_code,
		     updated_at = EXCLUDED.updated_at`,
		userID,
		code,
		now,
	)
	return err
}

// ListActiveSubscribers returns the ids of every user whose embedded
// subscription matches the product id with ACTIVE status.
func (r *UserRepo) ListActiveSubscribers(ctx context.Context, productID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM users
		 WHERE subscription->>'productId' = $1
		   AND subscription->>'status' = $2`,
		productID,
		string(types.SubStatusActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DemoteSubscriptions cancels every listed user's subscription in a single
// statement. The jsonb concatenation only overrides status, lastEvent and
// updatedAt; productId, expiresAt and platform on each record survive.
func (r *UserRepo) DemoteSubscriptions(ctx context.Context, userIDs []string, lastEvent string, now time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET subscription = subscription || jsonb_build_object(
		         'status', $2::text,
		         'lastEvent', $3::text,
		         'updatedAt', to_jsonb($4::timestamptz)),
		     updated_at = $4
		 WHERE id = ANY($1)
		   AND subscription IS NOT NULL`,
		userIDs,
		string(types.SubStatusCancelled),
		lastEvent,
		now,
	)
	if err != nil {
		return err
	}

	if int(tag.RowsAffected()) != len(userIDs) {
		// A concurrent webhook may have rewritten one of the rows between
		// the janitor's query and this write; last-write-wins applies.
		r.logger.Info("duplicate demotion affected fewer rows than selected",
			slog.Int("selected", len(userIDs)),
			slog.Int64("updated", tag.RowsAffected()),
		)
	}

	return nil
}
