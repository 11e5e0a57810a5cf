package account

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestResolveIDTag_AccountRefToken(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := &mocks.MockAccountRepository{
		FindByRefFunc: func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
			if ref.Kind == domain.AccountKindIndividual && ref.ID == 42 {
				return &domain.Account{Kind: ref.Kind, ID: ref.ID, Name: "Alice"}, nil
			}
			return nil, nil
		},
	}
	resolver := NewResolver(repo, newTestLogger())

	// Act
	acc, err := resolver.ResolveIDTag(ctx, "U-42")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if acc.ID != 42 || acc.Kind != domain.AccountKindIndividual {
		t.Errorf("unexpected account %+v", acc)
	}
}

func TestResolveIDTag_BusinessRefToken(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := &mocks.MockAccountRepository{
		FindByRefFunc: func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
			if ref.Kind == domain.AccountKindBusiness && ref.ID == 7 {
				return &domain.Account{Kind: ref.Kind, ID: ref.ID}, nil
			}
			return nil, nil
		},
	}
	resolver := NewResolver(repo, newTestLogger())

	// Act
	acc, err := resolver.ResolveIDTag(ctx, "B-7")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if acc.Kind != domain.AccountKindBusiness {
		t.Errorf("expected business account, got %+v", acc)
	}
}

func TestResolveIDTag_IndividualDocumentBeatsBusinessEmail(t *testing.T) {
	// Arrange: the same token matches an individual document and a business
	// email; precedence picks the individual.
	ctx := context.Background()
	repo := &mocks.MockAccountRepository{
		FindIndividualByNationalIDFunc: func(ctx context.Context, document string) (*domain.Account, error) {
			return &domain.Account{Kind: domain.AccountKindIndividual, ID: 1}, nil
		},
		FindBusinessByEmailFunc: func(ctx context.Context, email string) (*domain.Account, error) {
			return &domain.Account{Kind: domain.AccountKindBusiness, ID: 2}, nil
		},
	}
	resolver := NewResolver(repo, newTestLogger())

	// Act
	acc, err := resolver.ResolveIDTag(ctx, "12345678900")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if acc.Kind != domain.AccountKindIndividual || acc.ID != 1 {
		t.Errorf("expected the individual match to win, got %+v", acc)
	}
}

func TestResolveIDTag_IndividualEmailBeatsBusinessLookups(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := &mocks.MockAccountRepository{
		FindIndividualByEmailFunc: func(ctx context.Context, email string) (*domain.Account, error) {
			return &domain.Account{Kind: domain.AccountKindIndividual, ID: 3, Email: email}, nil
		},
		FindBusinessByTaxIDFunc: func(ctx context.Context, document string) (*domain.Account, error) {
			return &domain.Account{Kind: domain.AccountKindBusiness, ID: 4}, nil
		},
	}
	resolver := NewResolver(repo, newTestLogger())

	// Act
	acc, err := resolver.ResolveIDTag(ctx, "driver@example.com")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if acc.ID != 3 {
		t.Errorf("expected individual email match, got %+v", acc)
	}
}

func TestResolveIDTag_StaleRefFallsThrough(t *testing.T) {
	// Arrange: a well-formed U- token that matches no account still goes
	// through the document probes.
	ctx := context.Background()
	repo := &mocks.MockAccountRepository{
		FindIndividualByNationalIDFunc: func(ctx context.Context, document string) (*domain.Account, error) {
			if document == "U-99" {
				return &domain.Account{Kind: domain.AccountKindIndividual, ID: 99}, nil
			}
			return nil, nil
		},
	}
	resolver := NewResolver(repo, newTestLogger())

	// Act
	acc, err := resolver.ResolveIDTag(ctx, "U-99")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if acc.ID != 99 {
		t.Errorf("expected fallback match, got %+v", acc)
	}
}

func TestResolveIDTag_NoMatch(t *testing.T) {
	// Arrange
	ctx := context.Background()
	resolver := NewResolver(&mocks.MockAccountRepository{}, newTestLogger())

	// Act + Assert
	if _, err := resolver.ResolveIDTag(ctx, "nobody"); err != domain.ErrInvalidIdTag {
		t.Fatalf("expected ErrInvalidIdTag, got %v", err)
	}
	if _, err := resolver.ResolveIDTag(ctx, "   "); err != domain.ErrInvalidIdTag {
		t.Fatalf("expected ErrInvalidIdTag for blank tag, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	// Arrange
	ctx := context.Background()
	resolver := NewResolver(&mocks.MockAccountRepository{}, newTestLogger())

	// Act + Assert
	if _, err := resolver.Get(ctx, domain.AccountRef{Kind: domain.AccountKindIndividual, ID: 1}); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
