package scouts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scoutledger/backend/pkg/db/models"
)

// Repository persists scouts and their wallets.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, scout *models.Scout) error {
	return r.db.WithContext(ctx).Create(scout).Error
}

// FindByID returns the scout including soft-deleted rows. Missing rows return
// gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Scout, error) {
	var scout models.Scout
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&scout).Error; err != nil {
		return nil, err
	}
	return &scout, nil
}

// FindByIDForUpdate locks the scout row for the rest of the transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Scout, error) {
	var scout models.Scout
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&scout).Error
	if err != nil {
		return nil, err
	}
	return &scout, nil
}

// AddWallet links address to scoutID.
func (r *Repository) AddWallet(ctx context.Context, scoutID uuid.UUID, address string, primary bool) error {
	return r.db.WithContext(ctx).Create(&models.ScoutWallet{
		Address: normalize(address),
		ScoutID: scoutID,
		Primary: primary,
	}).Error
}

// ListWallets returns the scout's wallets, primary first.
func (r *Repository) ListWallets(ctx context.Context, scoutID uuid.UUID) ([]models.ScoutWallet, error) {
	var wallets []models.ScoutWallet
	err := r.db.WithContext(ctx).
		Where("scout_id = ?", scoutID).
		Order("is_primary DESC").
		Order("created_at ASC").
		Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

// PrimaryWallet returns the payout wallet of scoutID, falling back to its oldest
// wallet. ok is false when the scout has no wallet.
func (r *Repository) PrimaryWallet(ctx context.Context, scoutID uuid.UUID) (string, bool, error) {
	wallets, err := r.ListWallets(ctx, scoutID)
	if err != nil {
		return "", false, err
	}
	if len(wallets) == 0 {
		return "", false, nil
	}
	return wallets[0].Address, true, nil
}

// OwnerOfWallet returns the scout controlling address.
func (r *Repository) OwnerOfWallet(ctx context.Context, address string) (uuid.UUID, bool, error) {
	var wallet models.ScoutWallet
	err := r.db.WithContext(ctx).Where("address = ?", normalize(address)).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return wallet.ScoutID, true, nil
}

// ScoutsByWallet maps each known address to its current scout.
func (r *Repository) ScoutsByWallet(ctx context.Context, addresses []string) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}
	normalized := make([]string, len(addresses))
	for i, a := range addresses {
		normalized[i] = normalize(a)
	}
	var wallets []models.ScoutWallet
	if err := r.db.WithContext(ctx).Where("address IN ?", normalized).Find(&wallets).Error; err != nil {
		return nil, err
	}
	for _, w := range wallets {
		out[w.Address] = w.ScoutID
	}
	return out, nil
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
