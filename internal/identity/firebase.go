package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/terraconstructs/estate/internal/auth"
)

// FirebaseAdmin is the Firebase Authentication user directory.
type FirebaseAdmin struct {
	client *fbauth.Client
}

// NewFirebaseAdmin initializes the Admin SDK for projectID. An empty
// credentialsFile falls back to application default credentials.
func NewFirebaseAdmin(ctx context.Context, projectID, credentialsFile string) (*FirebaseAdmin, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase auth client: %w", err)
	}
	return &FirebaseAdmin{client: client}, nil
}

// LookupByEmail returns the provider user bound to email.
func (f *FirebaseAdmin) LookupByEmail(ctx context.Context, email string) (*IdentityRecord, error) {
	user, err := f.client.GetUserByEmail(ctx, email)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return nil, fmt.Errorf("provider user %s: %w", email, auth.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: lookup provider user: %v", auth.ErrUpstreamUnavailable, err)
	}
	return &IdentityRecord{
		ExternalID:    user.UID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		DisplayName:   user.DisplayName,
		AvatarURL:     user.PhotoURL,
	}, nil
}

// SetCustomClaims replaces the custom claims on the provider user.
func (f *FirebaseAdmin) SetCustomClaims(ctx context.Context, externalID string, claims map[string]any) error {
	if err := f.client.SetCustomUserClaims(ctx, externalID, claims); err != nil {
		return fmt.Errorf("set custom claims for %s: %w", externalID, err)
	}
	return nil
}

// RoleClaims are the custom claims mirrored onto the provider user for role.
func RoleClaims(role auth.Role) map[string]any {
	return map[string]any{
		"role":  role.String(),
		"admin": role == auth.RoleAdmin,
	}
}
