package identity

import (
	"context"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseVerifier checks Firebase Auth ID tokens.
type FirebaseVerifier struct {
	Client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, err
	}
	c, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseVerifier{Client: c}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (User, error) {
	t, err := v.Client.VerifyIDToken(ctx, token)
	if err != nil {
		return User{}, ErrInvalidToken
	}
	return User{
		ID:          strings.TrimSpace(t.UID),
		DisplayName: claim(t.Claims, "name"),
		Email:       claim(t.Claims, "email"),
	}, nil
}

func claim(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
