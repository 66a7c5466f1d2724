// Package credentials resolves upstream provider tokens on the server side.
// Environment variables win; the database is consulted only when the
// environment is empty.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reelcraft/internal/infra"
	"reelcraft/internal/sqlinline"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the credentials table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QCreateProviderCredentials); err != nil {
		return fmt.Errorf("credentials: ensure schema: %w", err)
	}
	return nil
}

// Token returns the active token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectProviderCredential, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: load %s: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores or replaces the token for provider.
func (s *Store) SetToken(ctx context.Context, provider, token, note string) error {
	if err := validProvider(provider); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("credentials: %s token is required", provider)
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertProviderCredential, provider, token, strings.TrimSpace(note))
	return err
}

// Revoke disables the stored token for provider.
func (s *Store) Revoke(ctx context.Context, provider string) error {
	if err := validProvider(provider); err != nil {
		return err
	}
	_, err := s.sql.Exec(ctx, sqlinline.QRevokeProviderCredential, provider)
	return err
}

// Resolve prefers envValue and falls back to the store. A nil store is
// allowed so binaries can run without a database.
func Resolve(ctx context.Context, store *Store, provider, envValue string) (string, error) {
	if v := strings.TrimSpace(envValue); v != "" {
		return v, nil
	}
	if store == nil {
		return "", nil
	}
	return store.Token(ctx, provider)
}

func validProvider(provider string) error {
	switch provider {
	case ProviderOpenAI, ProviderGemini:
		return nil
	}
	return errors.New("credentials: unsupported provider " + provider)
}
