package actorctx

import (
	"context"

	"github.com/geocoder89/shifthub/internal/identity"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the resolved identity carried by ctx, if any.
func IdentityFrom(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(identity.Identity)

	return id, ok && id.ExternalID != ""
}
