package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// CreateAccountRequest is the input for ChartService.CreateAccount.
type CreateAccountRequest struct {
	Code        string
	Name        string
	Description string
	Type        AccountType
	Subtype     string
	ParentCode  string
	IsParent    bool
	IsContra    bool
}

// AccountUpdate carries the user-mutable fields of an account. Nil fields are left alone.
type AccountUpdate struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// ChartService manages one tenant's chart of accounts.
type ChartService interface {
	Chart(ctx context.Context, tenantID string) (*Chart, error)
	ResolveAccount(ctx context.Context, tenantID, code string) (*Account, error)
	ListAccounts(ctx context.Context, tenantID string) ([]Account, error)
	ListChildren(ctx context.Context, tenantID, code string) ([]Account, error)
	ValidateForPosting(ctx context.Context, tenantID, code string) error
	CreateAccount(ctx context.Context, tenantID string, req CreateAccountRequest) (*Account, error)
	UpdateAccount(ctx context.Context, tenantID, code string, upd AccountUpdate) (*Account, error)
	DeleteAccount(ctx context.Context, tenantID, code string) error
	Seed(ctx context.Context, tenantID string, accounts []SeedAccount) (*SeedResult, error)
}

type chartService struct {
	store  Store
	policy Policy
	log    *zap.Logger
}

func NewChartService(store Store, policy Policy, logger *zap.Logger) ChartService {
	logger, _ = orNop(logger, nil)
	return &chartService{store: store, policy: policy, log: logger.Named("chart")}
}

func (s *chartService) Chart(ctx context.Context, tenantID string) (*Chart, error) {
	accounts, err := s.store.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return NewChart(accounts), nil
}

func (s *chartService) ResolveAccount(ctx context.Context, tenantID, code string) (*Account, error) {
	chart, err := s.Chart(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	a, err := chart.Resolve(strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *chartService) ListAccounts(ctx context.Context, tenantID string) ([]Account, error) {
	chart, err := s.Chart(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return chart.Accounts(), nil
}

func (s *chartService) ListChildren(ctx context.Context, tenantID, code string) ([]Account, error) {
	chart, err := s.Chart(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if _, err := chart.Resolve(code); err != nil {
		return nil, err
	}
	return chart.Children(code), nil
}

func (s *chartService) ValidateForPosting(ctx context.Context, tenantID, code string) error {
	chart, err := s.Chart(ctx, tenantID)
	if err != nil {
		return err
	}
	return chart.ValidateForPosting(code, s.policy.LeafOnlyPosting)
}

func (s *chartService) CreateAccount(ctx context.Context, tenantID string, req CreateAccountRequest) (*Account, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	req.ParentCode = strings.TrimSpace(req.ParentCode)
	req.Type = AccountType(strings.ToUpper(string(req.Type)))

	if req.Code == "" || req.Name == "" {
		return nil, invalidRequest("account code and name are required")
	}
	if !req.Type.Valid() {
		return nil, invalidRequest("unknown account type %q", req.Type)
	}

	a := Account{
		TenantID:    tenantID,
		Code:        req.Code,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Type:        req.Type,
		Subtype:     strings.TrimSpace(req.Subtype),
		ParentCode:  req.ParentCode,
		IsParent:    req.IsParent,
		IsContra:    req.IsContra,
		IsActive:    true,
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		accounts, err := tx.ListAccounts(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		chart := NewChart(accounts)
		if _, err := chart.Resolve(a.Code); err == nil {
			return &Error{Code: CodeDuplicateAccount, AccountCode: a.Code, Message: "account code already exists"}
		}
		if a.ParentCode != "" {
			parent, err := chart.Resolve(a.ParentCode)
			if err != nil {
				return err
			}
			if parent.Type != a.Type {
				return invalidRequest("account type %s differs from parent %s type %s", a.Type, parent.Code, parent.Type)
			}
		}
		return tx.InsertAccount(ctx, &a)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account created", zap.String("tenant", tenantID), zap.String("code", a.Code))
	return &a, nil
}

func (s *chartService) UpdateAccount(ctx context.Context, tenantID, code string, upd AccountUpdate) (*Account, error) {
	var updated Account
	err := s.store.InTx(ctx, func(tx Tx) error {
		accounts, err := tx.ListAccounts(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		a, err := NewChart(accounts).Resolve(code)
		if err != nil {
			return err
		}

		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return invalidRequest("account name cannot be empty")
			}
			if a.IsSystem && name != a.Name {
				return &Error{Code: CodeSystemAccount, AccountCode: code, Message: "system accounts cannot be renamed"}
			}
			a.Name = name
		}
		if upd.Description != nil {
			a.Description = strings.TrimSpace(*upd.Description)
		}
		if upd.IsActive != nil {
			if a.IsSystem && !*upd.IsActive {
				return &Error{Code: CodeSystemAccount, AccountCode: code, Message: "system accounts cannot be deactivated"}
			}
			a.IsActive = *upd.IsActive
		}

		if err := tx.UpdateAccount(ctx, &a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account updated", zap.String("tenant", tenantID), zap.String("code", code), zap.Bool("active", updated.IsActive))
	return &updated, nil
}

// DeleteAccount removes an account that has never been posted to. Accounts with
// history can only be deactivated.
func (s *chartService) DeleteAccount(ctx context.Context, tenantID, code string) error {
	err := s.store.InTx(ctx, func(tx Tx) error {
		accounts, err := tx.ListAccounts(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		chart := NewChart(accounts)
		a, err := chart.Resolve(code)
		if err != nil {
			return err
		}
		if a.IsSystem {
			return &Error{Code: CodeSystemAccount, AccountCode: code, Message: "system accounts cannot be deleted"}
		}
		if len(chart.Children(code)) > 0 {
			return &Error{Code: CodeAccountInUse, AccountCode: code, Message: "account has child accounts"}
		}
		used, err := tx.AccountHasPostings(ctx, tenantID, code)
		if err != nil {
			return fmt.Errorf("failed to check postings: %w", err)
		}
		if used {
			return &Error{Code: CodeAccountInUse, AccountCode: code, Message: "account has postings, deactivate it instead"}
		}
		return tx.DeleteAccount(ctx, tenantID, code)
	})
	if err != nil {
		return err
	}
	s.log.Info("account deleted", zap.String("tenant", tenantID), zap.String("code", code))
	return nil
}

// Seed reconciles the tenant's chart with accounts: missing codes are inserted, and
// existing codes get their name, description and subtype refreshed. Nothing is deleted
// or renumbered, so running Seed twice is the same as running it once.
func (s *chartService) Seed(ctx context.Context, tenantID string, accounts []SeedAccount) (*SeedResult, error) {
	if tenantID == "" {
		return nil, invalidRequest("tenant is required")
	}
	res := &SeedResult{}
	err := s.store.InTx(ctx, func(tx Tx) error {
		*res = SeedResult{}
		existing, err := tx.ListAccounts(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		byCode := make(map[string]Account, len(existing))
		for _, a := range existing {
			byCode[a.Code] = a
		}

		for _, sa := range accounts {
			cur, ok := byCode[sa.Code]
			if !ok {
				a := sa.account(tenantID)
				if err := tx.InsertAccount(ctx, &a); err != nil {
					return fmt.Errorf("failed to insert account %s: %w", sa.Code, err)
				}
				byCode[a.Code] = a
				res.Inserted++
				continue
			}
			if cur.Name == sa.Name && cur.Description == sa.Description && cur.Subtype == sa.Subtype {
				res.Unchanged++
				continue
			}
			cur.Name = sa.Name
			cur.Description = sa.Description
			cur.Subtype = sa.Subtype
			if err := tx.UpdateAccount(ctx, &cur); err != nil {
				return fmt.Errorf("failed to update account %s: %w", sa.Code, err)
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("chart seeded",
		zap.String("tenant", tenantID),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
	)
	return res, nil
}
