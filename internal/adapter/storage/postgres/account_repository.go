package postgres

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

// individualAccount and businessAccount mirror the billing-owned tables.
// This core only reads them and debits balances.
type individualAccount struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string
	Email            string `gorm:"index"`
	NationalIDNumber string `gorm:"column:national_id_number;index"`
	Balance          float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (individualAccount) TableName() string { return "individual_accounts" }

type businessAccount struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string
	Email       string `gorm:"index"`
	TaxIDNumber string `gorm:"column:tax_id_number;index"`
	Balance     float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (businessAccount) TableName() string { return "business_accounts" }

type AccountRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAccountRepository(db *gorm.DB, log *zap.Logger) ports.AccountRepository {
	return &AccountRepository{db: db, log: log}
}

func (r *AccountRepository) FindByRef(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	if ref.Kind == domain.AccountKindBusiness {
		return r.firstBusiness(ctx, "id = ?", ref.ID)
	}
	return r.firstIndividual(ctx, "id = ?", ref.ID)
}

func (r *AccountRepository) FindIndividualByNationalID(ctx context.Context, document string) (*domain.Account, error) {
	return r.firstIndividual(ctx, "national_id_number = ?", document)
}

func (r *AccountRepository) FindIndividualByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.firstIndividual(ctx, "email = ?", email)
}

func (r *AccountRepository) FindBusinessByTaxID(ctx context.Context, document string) (*domain.Account, error) {
	return r.firstBusiness(ctx, "tax_id_number = ?", document)
}

func (r *AccountRepository) FindBusinessByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.firstBusiness(ctx, "email = ?", email)
}

func (r *AccountRepository) Debit(ctx context.Context, ref domain.AccountRef, amount float64) error {
	db := dbFor(ctx, r.db)
	var result *gorm.DB
	if ref.Kind == domain.AccountKindBusiness {
		result = db.Model(&businessAccount{}).
			Where("id = ?", ref.ID).
			Update("balance", gorm.Expr("balance - ?", amount))
	} else {
		result = db.Model(&individualAccount{}).
			Where("id = ?", ref.ID).
			Update("balance", gorm.Expr("balance - ?", amount))
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) firstIndividual(ctx context.Context, query string, args ...interface{}) (*domain.Account, error) {
	db := dbFor(ctx, r.db)
	if txFromContext(ctx) != nil {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row individualAccount
	err := db.Where(query, args...).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Account{
		Kind:             domain.AccountKindIndividual,
		ID:               row.ID,
		Name:             row.Name,
		Email:            row.Email,
		NationalIDNumber: row.NationalIDNumber,
		Balance:          row.Balance,
		CreatedAt:        row.CreatedAt,
	}, nil
}

func (r *AccountRepository) firstBusiness(ctx context.Context, query string, args ...interface{}) (*domain.Account, error) {
	db := dbFor(ctx, r.db)
	if txFromContext(ctx) != nil {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row businessAccount
	err := db.Where(query, args...).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Account{
		Kind:        domain.AccountKindBusiness,
		ID:          row.ID,
		Name:        row.Name,
		Email:       row.Email,
		TaxIDNumber: row.TaxIDNumber,
		Balance:     row.Balance,
		CreatedAt:   row.CreatedAt,
	}, nil
}
