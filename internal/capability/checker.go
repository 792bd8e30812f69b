// Package capability gates remote video generation behind an explicit
// authorization object instead of ambient global state.
package capability

import (
	"context"
	"fmt"

	"clearmark/internal/infra/credentials"
)

// Checker answers whether this deployment may call the remote video model and
// records the wish for access when it may not. The orchestrator consults it
// before any remote video call is made.
type Checker interface {
	HasVideoAccess(ctx context.Context) (bool, error)
	RequestVideoAccess(ctx context.Context) error
}

// Status describes the authorization state for operator surfaces.
type Status struct {
	Granted   bool `json:"granted"`
	Requested bool `json:"requested"`
}

// StoreChecker is the credential-store-backed Checker used in production.
type StoreChecker struct {
	creds *credentials.Store
}

func NewStoreChecker(creds *credentials.Store) *StoreChecker {
	return &StoreChecker{creds: creds}
}

func (c *StoreChecker) HasVideoAccess(ctx context.Context) (bool, error) {
	granted, _, err := c.creds.VideoAccess(ctx)
	if err != nil {
		return false, fmt.Errorf("capability: check video access: %w", err)
	}
	return granted, nil
}

func (c *StoreChecker) RequestVideoAccess(ctx context.Context) error {
	if err := c.creds.RequestVideoAccess(ctx); err != nil {
		return fmt.Errorf("capability: request video access: %w", err)
	}
	return nil
}

// VideoStatus reports both flags for the capability endpoint.
func (c *StoreChecker) VideoStatus(ctx context.Context) (Status, error) {
	granted, requested, err := c.creds.VideoAccess(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("capability: video status: %w", err)
	}
	return Status{Granted: granted, Requested: requested}, nil
}

var _ Checker = (*StoreChecker)(nil)
