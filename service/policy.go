package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/store"
)

const (
	DefaultLateFeePerDay   int64   = 5000
	DefaultDamageFeeRate   float64 = 0.3
	DefaultLostBookFeeRate float64 = 1.0
	DefaultCurrency                = "IDR"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func DefaultPolicy() models.FinePolicy {
	return models.FinePolicy{
		LateFeePerDay:   DefaultLateFeePerDay,
		DamageFeeRate:   DefaultDamageFeeRate,
		LostBookFeeRate: DefaultLostBookFeeRate,
		Currency:        DefaultCurrency,
	}
}

// PolicyProvider exposes the single active fine policy.
type PolicyProvider struct {
	store    PolicyStore
	defaults models.FinePolicy
	now      func() time.Time
}

func NewPolicyProvider(st PolicyStore, defaults models.FinePolicy) *PolicyProvider {
	if defaults.Currency == "" {
		defaults.Currency = DefaultCurrency
	}
	return &PolicyProvider{
		store:    st,
		defaults: defaults,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Init makes sure an active policy exists. Call it once at startup.
func (p *PolicyProvider) Init(ctx context.Context) (*models.FinePolicy, error) {
	policy, err := p.store.EnsureActivePolicy(ctx, p.defaults)
	if err != nil {
		return nil, fmt.Errorf("ensure active policy: %w", err)
	}
	return policy, nil
}

func (p *PolicyProvider) Current(ctx context.Context) (*models.FinePolicy, error) {
	policy, err := p.store.ActivePolicy(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return p.Init(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load active policy: %w", err)
	}
	return policy, nil
}

type PolicyInput struct {
	LateFeePerDay   int64
	DamageFeeRate   float64
	LostBookFeeRate float64
	Currency        string
}

func ValidatePolicy(in PolicyInput) map[string]string {
	fields := map[string]string{}
	if in.LateFeePerDay < 0 {
		fields["lateFeePerDay"] = "must be zero or positive"
	}
	if in.DamageFeeRate < 0 || in.DamageFeeRate > 1 {
		fields["damageFeeRate"] = "must be between 0 and 1"
	}
	if in.LostBookFeeRate < 0 || in.LostBookFeeRate > 1 {
		fields["lostBookFeeRate"] = "must be between 0 and 1"
	}
	if !currencyPattern.MatchString(strings.ToUpper(strings.TrimSpace(in.Currency))) {
		fields["currency"] = "must be a 3 letter currency code"
	}
	return fields
}

// SetActive replaces the active policy. Only admins may change fees.
func (p *PolicyProvider) SetActive(ctx context.Context, actor models.Principal, in PolicyInput) (*models.FinePolicy, error) {
	if actor.Role != models.RoleAdmin {
		return nil, Forbidden("admin role required")
	}
	if fields := ValidatePolicy(in); len(fields) > 0 {
		return nil, Validation("invalid fine policy", fields)
	}
	by := actor.UserID
	policy := &models.FinePolicy{
		LateFeePerDay:   in.LateFeePerDay,
		DamageFeeRate:   in.DamageFeeRate,
		LostBookFeeRate: in.LostBookFeeRate,
		Currency:        strings.ToUpper(strings.TrimSpace(in.Currency)),
		UpdatedBy:       &by,
		CreatedAt:       p.now(),
	}
	if err := p.store.ReplaceActivePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("replace active policy: %w", err)
	}
	return policy, nil
}
