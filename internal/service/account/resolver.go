package account

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

// Resolver maps protocol id_tags onto billing accounts.
type Resolver struct {
	repo ports.AccountRepository
	log  *zap.Logger
}

func NewResolver(repo ports.AccountRepository, log *zap.Logger) ports.AccountResolver {
	return &Resolver{repo: repo, log: log}
}

// ResolveIDTag applies the fixed precedence: U-<id> individual lookup,
// B-<id> business lookup, then individual by national id number and email,
// then business by tax id and email. The first match wins; no match is
// ErrInvalidIdTag.
func (r *Resolver) ResolveIDTag(ctx context.Context, idTag string) (*domain.Account, error) {
	idTag = strings.TrimSpace(idTag)
	if idTag == "" {
		return nil, domain.ErrInvalidIdTag
	}

	if ref, ok := domain.ParseAccountRef(idTag); ok {
		acc, err := r.repo.FindByRef(ctx, ref)
		if err != nil {
			return nil, err
		}
		if acc != nil {
			return acc, nil
		}
		// A well-formed ref that matches nothing falls through to the
		// document/email probes; field devices sometimes reuse the prefix
		// convention for unrelated tokens.
	}

	lookups := []func(context.Context, string) (*domain.Account, error){
		r.repo.FindIndividualByNationalID,
		r.repo.FindIndividualByEmail,
		r.repo.FindBusinessByTaxID,
		r.repo.FindBusinessByEmail,
	}
	for _, lookup := range lookups {
		acc, err := lookup(ctx, idTag)
		if err != nil {
			return nil, err
		}
		if acc != nil {
			return acc, nil
		}
	}

	r.log.Debug("id tag resolved to no account", zap.String("id_tag", idTag))
	return nil, domain.ErrInvalidIdTag
}

func (r *Resolver) Get(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	acc, err := r.repo.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, domain.ErrNotFound
	}
	return acc, nil
}
