package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-dao-mirror/internal/logger"
	"github.com/feral-file/ff-dao-mirror/internal/membership"
	"github.com/feral-file/ff-dao-mirror/internal/store"
	"github.com/feral-file/ff-dao-mirror/internal/store/schema"
)

// Resolver provisions identities for addresses observed on-chain
//
//go:generate mockgen -source=resolver.go -destination=../mocks/identity_resolver.go -package=mocks -mock_names=Resolver=MockIdentityResolver
type Resolver interface {
	// Resolve ensures an identity exists for address with the given role in the given collective
	// and returns its id. The latest role replaces the previous one; collectives accumulate.
	Resolve(ctx context.Context, address string, role membership.Role, collectiveID string) (string, error)

	// FindByUsername returns the identity with the given username, or nil when none exists
	FindByUsername(ctx context.Context, username string) (*schema.Identity, error)
}

type resolver struct {
	store store.Store
}

// NewResolver creates a resolver backed by the record store
func NewResolver(store store.Store) Resolver {
	return &resolver{store: store}
}

// Username returns the identity username for an address
func Username(address string) string {
	return strings.ToLower(address)
}

// Resolve ensures an identity exists for address
func (r *resolver) Resolve(ctx context.Context, address string, role membership.Role, collectiveID string) (string, error) {
	username := Username(address)
	if username == "" {
		return "", errors.New("empty address")
	}

	identity, err := r.store.UpdateIdentity(ctx, username, func(i *schema.Identity) {
		i.Profile = datatypes.NewJSONType(MergeProfile(i.Profile.Data(), role, collectiveID))
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve identity for %s: %w", username, err)
	}

	logger.DebugCtx(ctx, "Resolved identity",
		zap.String("username", username),
		zap.String("role", string(role)),
		zap.String("identityID", identity.ID))

	return identity.ID, nil
}

// FindByUsername returns the identity with the given username
func (r *resolver) FindByUsername(ctx context.Context, username string) (*schema.Identity, error) {
	return r.store.GetIdentityByUsername(ctx, Username(username))
}

// MergeProfile applies an observed role and collective to a profile.
// Applying the same role and collective twice yields the same profile.
func MergeProfile(profile schema.Profile, role membership.Role, collectiveID string) schema.Profile {
	merged := schema.Profile{
		Membership:  string(role),
		Collectives: slices.Clone(profile.Collectives),
	}
	if merged.Collectives == nil {
		merged.Collectives = []string{}
	}
	if collectiveID != "" && !slices.Contains(merged.Collectives, collectiveID) {
		merged.Collectives = append(merged.Collectives, collectiveID)
	}
	return merged
}
