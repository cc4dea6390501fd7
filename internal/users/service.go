// Package users manages profiles on top of the availability directory:
// admin registration and removal of accounts, and self-service profile and
// push-token updates.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/feed"
)

// Profile holds the self-editable user fields. Nil leaves a field unset.
type Profile struct {
	FullName       string
	Email          string
	Specialization *string
	Phone          *string
	Address        *string
	DateOfBirth    *string
	LicenseNumber  *string
}

type NewDoctor struct {
	Email          string
	Password       string
	FullName       string
	Specialization string
	LicenseNumber  *string
}

type Service struct {
	dir      availability.Directory
	accounts auth.Accounts
	feed     feed.Feed
	logger   *zap.Logger
}

func NewService(dir availability.Directory, accounts auth.Accounts, f feed.Feed, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if f == nil {
		f = feed.NewHub()
	}
	return &Service{dir: dir, accounts: accounts, feed: f, logger: logger}
}

func (s *Service) Get(ctx context.Context, uid string) (*availability.User, error) {
	u, err := s.dir.GetUser(ctx, uid)
	if err != nil {
		return nil, classify("get user", err)
	}
	return u, nil
}

func (s *Service) ListByRole(ctx context.Context, role auth.Role) ([]availability.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", availability.ErrInvalidInput, role)
	}
	out, err := s.dir.ListUsersByRole(ctx, role)
	if err != nil {
		return nil, classify("list users", err)
	}
	return out, nil
}

// CreateDoctor registers a sign-in account and a doctor profile for it. The
// account is removed again when the profile cannot be written.
func (s *Service) CreateDoctor(ctx context.Context, nd NewDoctor) (*availability.User, error) {
	uid, err := s.accounts.CreateAccount(ctx, auth.NewAccount{
		Email:       strings.TrimSpace(nd.Email),
		Password:    nd.Password,
		DisplayName: strings.TrimSpace(nd.FullName),
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create account: %w", availability.ErrRemoteUnavailable, err)
	}

	spec := strings.TrimSpace(nd.Specialization)
	u := availability.User{
		UID:            uid,
		Email:          strings.TrimSpace(nd.Email),
		FullName:       strings.TrimSpace(nd.FullName),
		Role:           auth.RoleDoctor,
		Specialization: &spec,
		LicenseNumber:  trimmed(nd.LicenseNumber),
	}
	if err := s.dir.UpdateUser(ctx, u); err != nil {
		if derr := s.accounts.DeleteAccount(context.WithoutCancel(ctx), uid); derr != nil {
			s.logger.Error("orphaned account after failed profile write",
				zap.String("uid", uid),
				zap.Error(derr))
		}
		return nil, classify("create doctor profile", err)
	}

	s.logger.Info("doctor registered", zap.String("uid", uid))
	return s.Get(ctx, uid)
}

// Delete removes the profile, then the sign-in account. A deleted doctor's
// slots go with the profile; ledger records are kept.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, uid string) error {
	if caller.UID == uid {
		return fmt.Errorf("%w: admins cannot delete their own account", availability.ErrInvalidInput)
	}
	if err := s.dir.DeleteUser(ctx, uid); err != nil {
		return classify("delete user", err)
	}

	if err := s.accounts.DeleteAccount(context.WithoutCancel(ctx), uid); err != nil {
		s.logger.Warn("profile deleted but sign-in account remains",
			zap.String("uid", uid),
			zap.Error(err))
	}
	if err := s.feed.Publish(ctx, feed.DoctorSlotsTopic(uid)); err != nil {
		s.logger.Warn("publish user removal", zap.String("uid", uid), zap.Error(err))
	}

	s.logger.Info("user deleted", zap.String("uid", uid), zap.String("by", caller.UID))
	return nil
}

// UpdateProfile writes the caller's own profile. A first write registers
// the caller as a patient; an existing role is never changed here.
func (s *Service) UpdateProfile(ctx context.Context, caller auth.Caller, p Profile) (*availability.User, error) {
	u, err := s.dir.GetUser(ctx, caller.UID)
	switch {
	case errors.Is(err, availability.ErrUserNotFound):
		u = &availability.User{UID: caller.UID, Role: auth.RolePatient}
	case err != nil:
		return nil, classify("get user", err)
	}

	u.FullName = strings.TrimSpace(p.FullName)
	u.Email = strings.TrimSpace(p.Email)
	u.Phone = trimmed(p.Phone)
	u.Address = trimmed(p.Address)
	u.DateOfBirth = trimmed(p.DateOfBirth)
	if u.Role == auth.RoleDoctor {
		u.Specialization = trimmed(p.Specialization)
		u.LicenseNumber = trimmed(p.LicenseNumber)
	}

	if err := s.dir.UpdateUser(ctx, *u); err != nil {
		return nil, classify("update profile", err)
	}
	return s.Get(ctx, caller.UID)
}

// SetPushToken stores the device token push notices go to. An empty token
// turns notices off.
func (s *Service) SetPushToken(ctx context.Context, caller auth.Caller, token string) error {
	u, err := s.dir.GetUser(ctx, caller.UID)
	if err != nil {
		return classify("get user", err)
	}
	u.FCMToken = strings.TrimSpace(token)
	if err := s.dir.UpdateUser(ctx, *u); err != nil {
		return classify("store push token", err)
	}
	return nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func classify(op string, err error) error {
	if errors.Is(err, availability.ErrNotFound) ||
		errors.Is(err, availability.ErrWriteConflict) ||
		errors.Is(err, availability.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", availability.ErrRemoteUnavailable, op, err)
}
