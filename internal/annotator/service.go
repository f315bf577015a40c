// Package annotator manages the annotator directory: registration,
// lookup and deactivation of the people doing annotation work.
package annotator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tagwise/tagwise/internal/datastore"
	"github.com/tagwise/tagwise/internal/errors"
	"github.com/tagwise/tagwise/internal/logging"
)

// Roles an annotator account may hold.
const (
	RoleAnnotator = "annotator"
	RoleAdmin     = "admin"
)

const minPasswordLength = 8

// Profile is the exposed view of an annotator, without credentials.
type Profile struct {
	ID       uint   `json:"id"`
	PublicID string `json:"publicId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Service implements the annotator directory.
type Service struct {
	ds     datastore.Interface
	logger *slog.Logger
}

// NewService creates an annotator directory service.
func NewService(ds datastore.Interface) *Service {
	logger := logging.ForService("annotator")
	if logger == nil {
		logger = slog.Default().With("service", "annotator")
	}
	return &Service{
		ds:     ds,
		logger: logger,
	}
}

// Register creates a new annotator account. The email must be unique
// among all accounts, deactivated ones included.
func (s *Service) Register(ctx context.Context, name, email, password, role string) (Profile, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return Profile{}, validationError("name must not be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return Profile{}, validationError("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return Profile{}, validationError("password must have at least 8 characters")
	}
	switch role {
	case "":
		role = RoleAnnotator
	case RoleAnnotator, RoleAdmin:
	default:
		return Profile{}, validationError("role must be annotator or admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, errors.New(err).
			Component("annotator").
			Category(errors.CategoryGeneric).
			Build()
	}

	account := datastore.Annotator{
		PublicID:     uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.ds.SaveAnnotator(ctx, &account); err != nil {
		return Profile{}, err
	}

	s.logger.Info("annotator registered", "annotator_id", account.ID, "role", role)
	return profileOf(&account), nil
}

// Authenticate verifies an email/password pair and returns the matching
// profile. Failures are reported uniformly to avoid leaking which part
// was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.ds.GetAnnotatorByEmail(ctx, email)
	if err != nil || account.Deleted {
		return Profile{}, invalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Profile{}, invalidCredentials()
	}
	return profileOf(&account), nil
}

// Get returns one active annotator's profile.
func (s *Service) Get(ctx context.Context, id uint) (Profile, error) {
	account, err := s.ds.GetAnnotator(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if account.Deleted {
		return Profile{}, errors.NotFoundError("annotator", id)
	}
	return profileOf(&account), nil
}

// List returns all active annotators.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	accounts, err := s.ds.GetAllAnnotators(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(accounts))
	for i := range accounts {
		profiles = append(profiles, profileOf(&accounts[i]))
	}
	return profiles, nil
}

// Deactivate soft-deletes an annotator account. Existing assignments
// and ledger entries are untouched; datasets must be rebalanced
// separately if needed.
func (s *Service) Deactivate(ctx context.Context, id uint) error {
	if err := s.ds.SoftDeleteAnnotator(ctx, id); err != nil {
		return err
	}
	s.logger.Info("annotator deactivated", "annotator_id", id)
	return nil
}

func profileOf(a *datastore.Annotator) Profile {
	return Profile{
		ID:       a.ID,
		PublicID: a.PublicID,
		Name:     a.Name,
		Email:    a.Email,
		Role:     a.Role,
	}
}

func validationError(message string) error {
	return errors.New(errors.NewStd(message)).
		Component("annotator").
		Category(errors.CategoryValidation).
		Build()
}

func invalidCredentials() error {
	return errors.New(errors.NewStd("invalid email or password")).
		Component("annotator").
		Category(errors.CategoryValidation).
		Build()
}
