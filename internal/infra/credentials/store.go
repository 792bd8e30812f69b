// Package credentials keeps remote-service API keys and access grants in the
// database so they can be rotated without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"clearmark/internal/infra"
	"clearmark/internal/sqlinline"
)

const (
	ServiceGemini = "gemini"
	// ServiceVideo is the grant row gating remote video generation. Its
	// api_key stays empty; the gemini key is used once access is granted.
	ServiceVideo = "video"
)

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// GeminiAPIKey returns the stored key, or "" when none is configured.
func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	key, _, _, err := s.lookup(ctx, ServiceGemini)
	return key, err
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("credentials: gemini api key is required")
	}
	return s.grant(ctx, ServiceGemini, key, nil)
}

// VideoAccess reports whether remote video generation has been granted and
// whether a grant has been requested.
func (s *Store) VideoAccess(ctx context.Context) (granted, requested bool, err error) {
	_, requested, granted, err = s.lookup(ctx, ServiceVideo)
	return granted, requested, err
}

// GrantVideoAccess marks video generation as authorized.
func (s *Store) GrantVideoAccess(ctx context.Context) error {
	return s.grant(ctx, ServiceVideo, "", nil)
}

// RequestVideoAccess records that a run wanted video access. The first
// request timestamp is preserved on repeat calls.
func (s *Store) RequestVideoAccess(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QMarkCredentialRequested, ServiceVideo)
	return err
}

// RevokeVideoAccess withdraws the video grant.
func (s *Store) RevokeVideoAccess(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QRevokeCredentialGrant, ServiceVideo)
	return err
}

func (s *Store) lookup(ctx context.Context, service string) (key string, requested, granted bool, err error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectCredential, service)
	if err := row.Scan(&key, &requested, &granted); err != nil {
		if infra.IsNoRows(err) {
			return "", false, false, nil
		}
		return "", false, false, err
	}
	return strings.TrimSpace(key), requested, granted, nil
}

func (s *Store) grant(ctx context.Context, service, key string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertCredentialGrant, service, key, raw)
	return err
}
