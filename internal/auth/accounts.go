package auth

import (
	"context"
	"errors"
	"fmt"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
)

var ErrEmailTaken = errors.New("email already registered")

// NewAccount is the sign-in identity created for a user an admin registers.
type NewAccount struct {
	Email       string
	Password    string
	DisplayName string
}

// Accounts creates and removes sign-in identities.
type Accounts interface {
	// CreateAccount returns the uid of the new identity, or ErrEmailTaken.
	CreateAccount(ctx context.Context, a NewAccount) (string, error)
	// DeleteAccount is a no-op for a uid that never existed.
	DeleteAccount(ctx context.Context, uid string) error
}

// UserManager is the subset of the Firebase Auth client used for accounts.
type UserManager interface {
	CreateUser(ctx context.Context, user *firebaseauth.UserToCreate) (*firebaseauth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

type FirebaseAccounts struct {
	users UserManager
}

func NewFirebaseAccounts(users UserManager) *FirebaseAccounts {
	return &FirebaseAccounts{users: users}
}

func (a *FirebaseAccounts) CreateAccount(ctx context.Context, na NewAccount) (string, error) {
	params := (&firebaseauth.UserToCreate{}).
		Email(na.Email).
		Password(na.Password)
	if na.DisplayName != "" {
		params = params.DisplayName(na.DisplayName)
	}

	rec, err := a.users.CreateUser(ctx, params)
	if err != nil {
		if firebaseauth.IsEmailAlreadyExists(err) {
			return "", fmt.Errorf("%w: %s", ErrEmailTaken, na.Email)
		}
		return "", fmt.Errorf("create account %s: %w", na.Email, err)
	}
	return rec.UID, nil
}

func (a *FirebaseAccounts) DeleteAccount(ctx context.Context, uid string) error {
	if err := a.users.DeleteUser(ctx, uid); err != nil && !firebaseauth.IsUserNotFound(err) {
		return fmt.Errorf("delete account %s: %w", uid, err)
	}
	return nil
}

// LocalAccounts hands out generated uids for header-authenticated runs,
// where identities live only in the X-User-ID header.
type LocalAccounts struct {
	Prefix string
}

func (a LocalAccounts) CreateAccount(context.Context, NewAccount) (string, error) {
	return a.Prefix + uuid.NewString(), nil
}

func (LocalAccounts) DeleteAccount(context.Context, string) error { return nil }
