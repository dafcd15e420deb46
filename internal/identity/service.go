package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

// WalletProvisioner creates the owner's wallet at registration.
type WalletProvisioner interface {
	Create(ctx context.Context, input wallet.CreateInput) (wallet.Wallet, error)
}

// Service manages wallet owner profiles.
type Service struct {
	repo    Repository
	wallets WalletProvisioner
}

// NewService creates a new identity service.
func NewService(repo Repository, wallets WalletProvisioner) *Service {
	return &Service{repo: repo, wallets: wallets}
}

// RegisterInput carries the profile of the authenticated subject.
type RegisterInput struct {
	UserID               string
	Email                string
	FirstName            string
	LastName             string
	Phone                string
	NotificationsEnabled bool
}

// Register stores the profile and provisions its wallet with zero balances.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, wallet.Wallet, error) {
	if _, err := uuid.Parse(input.UserID); err != nil {
		return User{}, wallet.Wallet{}, fmt.Errorf("%w: subject must be a uuid", ErrInvalidProfile)
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, wallet.Wallet{}, fmt.Errorf("%w: invalid email", ErrInvalidProfile)
	}

	user := User{
		ID:                   input.UserID,
		Email:                email,
		FirstName:            strings.TrimSpace(input.FirstName),
		LastName:             strings.TrimSpace(input.LastName),
		Phone:                strings.TrimSpace(input.Phone),
		NotificationsEnabled: input.NotificationsEnabled,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, wallet.Wallet{}, err
	}

	w, err := s.wallets.Create(ctx, wallet.CreateInput{OwnerID: user.ID})
	if err != nil {
		return user, wallet.Wallet{}, fmt.Errorf("provision wallet: %w", err)
	}
	return user, w, nil
}

// Get returns the profile.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByID satisfies lookups from other packages.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// SetPIN hashes and stores a 4 to 6 digit transaction PIN.
func (s *Service) SetPIN(ctx context.Context, id, pin string) error {
	if !validPIN(pin) {
		return fmt.Errorf("%w: PIN must be 4 to 6 digits", ErrInvalidProfile)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePIN(ctx, id, hash)
}

// VerifyPIN checks a purchase PIN against the stored hash.
func (s *Service) VerifyPIN(ctx context.Context, id, pin string) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !user.HasPIN() {
		return ErrPINNotSet
	}
	if err := bcrypt.CompareHashAndPassword(user.PINHash, []byte(pin)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPIN
		}
		return err
	}
	return nil
}

// SetNotifications toggles credit notifications.
func (s *Service) SetNotifications(ctx context.Context, id string, enabled bool) error {
	return s.repo.UpdatePreferences(ctx, id, enabled)
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
