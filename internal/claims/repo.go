package claims

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

// Repository persists claim snapshots, receipt claim marks and submissions.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindWeeklyClaim returns nil when week has no published snapshot.
func (r *Repository) FindWeeklyClaim(ctx context.Context, week string) (*models.WeeklyClaim, error) {
	var claim models.WeeklyClaim
	err := r.db.WithContext(ctx).Where("week = ?", week).First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *Repository) CreateWeeklyClaim(ctx context.Context, claim *models.WeeklyClaim) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

// TokenEntitlements sums the week's token receipts per recipient wallet.
func (r *Repository) TokenEntitlements(ctx context.Context, week string) (map[string]*uint256.Int, error) {
	var receipts []models.TokensReceipt
	err := r.db.WithContext(ctx).
		Select("recipient_address", "value").
		Where("week = ?", week).
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]*uint256.Int)
	for _, rc := range receipts {
		sum, ok := out[rc.RecipientAddress]
		if !ok {
			sum = new(uint256.Int)
			out[rc.RecipientAddress] = sum
		}
		if _, overflow := sum.AddOverflow(sum, &rc.Value.Int); overflow {
			return nil, pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "token entitlement for %s overflows", rc.RecipientAddress)
		}
	}
	return out, nil
}

// UnclaimedPoints returns the recipient's unclaimed points receipts. An empty week
// matches every week.
func (r *Repository) UnclaimedPoints(ctx context.Context, recipientID uuid.UUID, week string) ([]models.PointsReceipt, error) {
	query := r.db.WithContext(ctx).
		Where("recipient_id = ? AND claimed_at IS NULL", recipientID)
	if week != "" {
		query = query.Where("week = ?", week)
	}
	var receipts []models.PointsReceipt
	if err := query.Order("created_at ASC").Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

// MarkPointsClaimed sets claimed_at on receipts that are still unclaimed.
func (r *Repository) MarkPointsClaimed(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.PointsReceipt{}).
		Where("id IN ? AND claimed_at IS NULL", ids).
		Update("claimed_at", at)
	return res.RowsAffected, res.Error
}

// LockScout takes a row lock on the scout for the rest of the transaction.
func (r *Repository) LockScout(ctx context.Context, scoutID uuid.UUID) (*models.Scout, error) {
	var scout models.Scout
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", scoutID).
		First(&scout).Error
	if err != nil {
		return nil, err
	}
	return &scout, nil
}

func (r *Repository) FindScout(ctx context.Context, scoutID uuid.UUID) (*models.Scout, error) {
	var scout models.Scout
	if err := r.db.WithContext(ctx).Where("id = ?", scoutID).First(&scout).Error; err != nil {
		return nil, err
	}
	return &scout, nil
}

func (r *Repository) IncrementBalance(ctx context.Context, scoutID uuid.UUID, delta float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Scout{}).
		Where("id = ?", scoutID).
		Update("current_balance", gorm.Expr("current_balance + ?", delta)).Error
}

// MarkTokensClaimed sets claimed_at on the wallet's unclaimed token receipts of week.
func (r *Repository) MarkTokensClaimed(ctx context.Context, wallet, week string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TokensReceipt{}).
		Where("recipient_address = ? AND week = ? AND claimed_at IS NULL", wallet, week).
		Update("claimed_at", at)
	return res.RowsAffected, res.Error
}

func (r *Repository) CreateSubmission(ctx context.Context, sub *models.ClaimSubmission) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

// ActiveSubmission returns a pending or confirmed submission for wallet and week.
func (r *Repository) ActiveSubmission(ctx context.Context, wallet, week string) (*models.ClaimSubmission, error) {
	var sub models.ClaimSubmission
	err := r.db.WithContext(ctx).
		Where("wallet_address = ? AND week = ?", wallet, week).
		Where("status IN ?", []enums.ClaimSubmissionStatus{enums.ClaimSubmissionPending, enums.ClaimSubmissionConfirmed}).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListDue returns the oldest pending submissions whose next check is due at now.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.ClaimSubmission, error) {
	var subs []models.ClaimSubmission
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ClaimSubmissionPending).
		Where("(next_check_at IS NULL OR next_check_at <= ?)", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// TransitionSubmission applies updates only while the submission is still pending.
func (r *Repository) TransitionSubmission(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ClaimSubmission{}).
		Where("id = ? AND status = ?", id, enums.ClaimSubmissionPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UnclaimedPointsTotal sums unclaimed points owed to scoutID.
func (r *Repository) UnclaimedPointsTotal(ctx context.Context, scoutID uuid.UUID) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&models.PointsReceipt{}).
		Select("COALESCE(SUM(value), 0)").
		Where("recipient_id = ? AND claimed_at IS NULL", scoutID).
		Scan(&total).Error
	return total, err
}

// UnclaimedTokens returns unclaimed token receipts owed to scoutID.
func (r *Repository) UnclaimedTokens(ctx context.Context, scoutID uuid.UUID) ([]models.TokensReceipt, error) {
	var receipts []models.TokensReceipt
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND claimed_at IS NULL", scoutID).
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}
