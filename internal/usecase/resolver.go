package usecase

import (
	"context"
	"errors"
	"fmt"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/storage"
)

// TenantResolver maps a channel identity to the tenant that owns it.
type TenantResolver struct {
	directory storage.TenantDirectoryRepo
}

// NewTenantResolver creates a resolver over the tenant directory.
func NewTenantResolver(directory storage.TenantDirectoryRepo) *TenantResolver {
	return &TenantResolver{directory: directory}
}

// Resolve looks up the tenant owning the sender identity on the given
// channel. An unknown sender returns ErrUnknownSender so the pipeline can
// reply with the registration prompt instead of failing.
func (r *TenantResolver) Resolve(ctx context.Context, channel model.Channel, senderKey string) (*model.TenantProfile, error) {
	if senderKey == "" {
		return nil, fmt.Errorf("%w: empty sender key", apperrors.ErrMalformedPayload)
	}
	profile, err := r.directory.FindBySenderKey(ctx, channel, senderKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: no tenant for %s sender %s", apperrors.ErrUnknownSender, channel, senderKey)
		}
		return nil, fmt.Errorf("resolving tenant for %s sender: %w", channel, err)
	}
	return profile, nil
}
