// README: Firebase ID-token verification yielding the caller's uid and ride role.
package infra

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("invalid id token")

// Identity is the verified caller. Role is "rider", "driver" or "" when the
// token carries no usable role claim.
type Identity struct {
	UID  string
	Role string
}

// RoleFromClaims reads the "role" custom claim. Values other than rider and
// driver are dropped.
func RoleFromClaims(claims map[string]interface{}) string {
	switch role, _ := claims["role"].(string); role {
	case "rider", "driver":
		return role
	}
	return ""
}

// TokenVerifier turns a raw bearer token into the caller's Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (Identity, error)
}

type FirebaseOptions struct {
	ProjectID       string
	CredentialsFile string // service-account JSON; empty uses application-default credentials
	CheckRevoked    bool
}

type firebaseVerifier struct {
	client       *auth.Client
	checkRevoked bool
}

func NewFirebaseVerifier(ctx context.Context, opts FirebaseOptions) (TokenVerifier, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("firebase: project id is required")
	}
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &firebaseVerifier{client: client, checkRevoked: opts.CheckRevoked}, nil
}

func (v *firebaseVerifier) Verify(ctx context.Context, raw string) (Identity, error) {
	var (
		token *auth.Token
		err   error
	)
	if v.checkRevoked {
		token, err = v.client.VerifyIDTokenAndCheckRevoked(ctx, raw)
	} else {
		token, err = v.client.VerifyIDToken(ctx, raw)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{UID: token.UID, Role: RoleFromClaims(token.Claims)}, nil
}
