package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// GetApp creates a Firebase App. An empty credentialsFile falls back to
// application default credentials.
func GetApp(ctx context.Context, credentialsFile string) (*firebase.App, error) {
	if credentialsFile != "" {
		return firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	}
	return firebase.NewApp(ctx, nil)
}

// InitFirebaseAuth initializes the Firebase App and returns an Auth client.
func InitFirebaseAuth(ctx context.Context, credentialsFile string) (*firebase.App, *firebaseauth.Client, error) {
	app, err := GetApp(ctx, credentialsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase app [%w]", err)
	}

	fbAuth, err := app.Auth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase auth [%w]", err)
	}

	return app, fbAuth, nil
}

type userGetter interface {
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
}

// UserDirectory resolves display names from Firebase Auth user records.
type UserDirectory struct {
	users userGetter
}

func NewUserDirectory(users userGetter) *UserDirectory {
	return &UserDirectory{users: users}
}

// DisplayName returns the user's display name, falling back to their email.
func (d *UserDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	if d.users == nil {
		return "", errors.New("firebase auth client is not configured")
	}
	rec, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lookup firebase user %s: %w", userID, err)
	}
	if rec == nil || rec.UserInfo == nil {
		return "", fmt.Errorf("firebase user %s has no profile", userID)
	}
	if name := strings.TrimSpace(rec.DisplayName); name != "" {
		return name, nil
	}
	if rec.Email != "" {
		return rec.Email, nil
	}
	return "", fmt.Errorf("firebase user %s has no display name", userID)
}
