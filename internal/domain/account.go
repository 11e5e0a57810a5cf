package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type AccountKind string

const (
	AccountKindIndividual AccountKind = "individual"
	AccountKindBusiness   AccountKind = "business"
)

// Account is the normalized view over the individual and business account
// tables. Balance is owned by billing but read and debited by this core.
type Account struct {
	Kind             AccountKind `json:"kind"`
	ID               uint        `json:"id"`
	Name             string      `json:"name"`
	Email            string      `json:"email"`
	NationalIDNumber string      `json:"national_id_number,omitempty"`
	TaxIDNumber      string      `json:"tax_id_number,omitempty"`
	Balance          float64     `json:"balance"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Ref returns the protocol-facing account reference, e.g. "U-42" or "B-7".
func (a *Account) Ref() AccountRef {
	return AccountRef{Kind: a.Kind, ID: a.ID}
}

// AccountRef identifies an account without loading it.
type AccountRef struct {
	Kind AccountKind `json:"kind"`
	ID   uint        `json:"id"`
}

func (r AccountRef) String() string {
	prefix := "U"
	if r.Kind == AccountKindBusiness {
		prefix = "B"
	}
	return fmt.Sprintf("%s-%d", prefix, r.ID)
}

// ParseAccountRef parses "U-<id>" / "B-<id>" tokens. ok is false for any
// other shape; callers fall back to email or document lookups.
func ParseAccountRef(token string) (AccountRef, bool) {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return AccountRef{}, false
	}
	id, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return AccountRef{}, false
	}
	switch parts[0] {
	case "U":
		return AccountRef{Kind: AccountKindIndividual, ID: uint(id)}, true
	case "B":
		return AccountRef{Kind: AccountKindBusiness, ID: uint(id)}, true
	default:
		return AccountRef{}, false
	}
}
