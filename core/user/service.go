package user

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mindzed/attendance/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrAlreadyInitialized = errors.New("System already initialized. Registration disabled.")
	ErrPasswordNotSet     = errors.New("User record or password not found.")
	ErrIncorrectPassword  = errors.New("Incorrect current password.")
	ErrNoSession          = errors.New("Unauthorized access. Please log in again.")

	errMissingCredentials = errors.New("Missing email or password")
	errAllFieldsRequired  = errors.New("All fields are required.")
	errAdminFieldsMissing = errors.New("All fields are required")
	errPasswordsMismatch  = errors.New("New passwords do not match.")
)

type (
	Repository interface {
		// CountUsers counts the users holding one of roles (all users when none given).
		CountUsers(ctx context.Context, roles ...Role) (int, error)
		// CreateFirstAdmin inserts usr only if no user exists yet, atomically.
		// It returns ErrAlreadyInitialized otherwise.
		CreateFirstAdmin(ctx context.Context, usr User) (User, error)
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		logger   core.Logger
		conf     *core.Config

		dummyOnce sync.Once
		dummyHash []byte
	}
)

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
		logger:   logger,
		conf:     conf,
	}
}

// SystemStatus reports whether no account exists yet.
// A storage failure reports the system as initialized.
func (svc *Service) SystemStatus(ctx context.Context) SystemStatus {
	count, err := svc.repo.CountUsers(ctx)
	if err != nil {
		svc.logger.Error("counting users", err)
		return SystemStatus{IsFirstRun: false}
	}
	return SystemStatus{IsFirstRun: count == 0}
}

// RegisterFirstAdmin creates the very first account, always as an ADMIN.
func (svc *Service) RegisterFirstAdmin(ctx context.Context, na NewAdmin) (User, error) {
	if err := na.Validate(svc.validate); err != nil {
		return User{}, err
	}

	if count, err := svc.repo.CountUsers(ctx); err != nil {
		return User{}, errors.Wrap(err, "counting users")
	} else if count > 0 {
		return User{}, ErrAlreadyInitialized
	}

	now := time.Now().UTC()
	usr := User{
		Name:      na.Name,
		Email:     na.Email,
		Role:      RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(na.Password, svc.conf.Password.HashCost); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateFirstAdmin(ctx, usr)
	if err != nil {
		return User{}, err
	}

	svc.logger.Info("first administrator registered", usr.Identity())
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome_admin",
		TemplateData: map[string]interface{}{"Name": usr.Name, "Email": usr.Email},
	})
	return usr, nil
}

// Authenticate verifies creds and returns the matching user's Identity.
// Unknown email, missing password hash and wrong password all fail with ErrInvalidCredentials.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	creds.Clean()
	if creds.Email == "" || creds.Password == "" {
		return Identity{}, core.NewValidationError(errMissingCredentials)
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: creds.Email})
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Identity{}, errors.Wrap(err, "finding user")
		}
		svc.burnHash(creds.Password)
		return Identity{}, ErrInvalidCredentials
	}
	if !usr.HasPassword() {
		svc.burnHash(creds.Password)
		return Identity{}, ErrInvalidCredentials
	}
	if err := usr.CheckPassword(creds.Password); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	usr.LastLogin = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		svc.logger.Error("updating last login", err, usr.Identity())
	}
	return usr.Identity(), nil
}

// burnHash runs one bcrypt comparison so that rejected logins take about as long as real ones.
func (svc *Service) burnHash(pwd string) {
	svc.dummyOnce.Do(func() {
		var usr User
		if err := usr.SetPassword("not-a-real-password", svc.conf.Password.HashCost); err == nil {
			svc.dummyHash = usr.PasswordHash
		}
	})
	usr := User{PasswordHash: svc.dummyHash}
	_ = usr.CheckPassword(pwd)
}

// ChangePassword replaces the caller's password after verifying the current one.
func (svc *Service) ChangePassword(ctx context.Context, caller Identity, cp ChangePassword) error {
	if caller.IsZero() {
		return ErrNoSession
	}
	if err := cp.Validate(svc.validate, svc.conf.Password.MinLength); err != nil {
		return err
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: caller.ID})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(ErrPasswordNotSet)
		}
		return errors.Wrap(err, "finding user")
	}
	if !usr.HasPassword() {
		return core.NewValidationError(ErrPasswordNotSet)
	}
	if err := usr.CheckPassword(cp.CurrentPassword); err != nil {
		return core.NewValidationError(ErrIncorrectPassword)
	}

	if err := usr.SetPassword(cp.NewPassword, svc.conf.Password.HashCost); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating password")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your password was changed",
		TemplateName: "password_changed",
		TemplateData: map[string]interface{}{
			"Email":     usr.Email,
			"ChangedAt": usr.UpdatedAt.Format(time.RFC1123),
		},
	})
	return nil
}

// Create adds a user of any role. Without a password the account is not yet activated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.Password != "" {
		if err := usr.SetPassword(nu.Password, svc.conf.Password.HashCost); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return User{}, err
	}
	return usr, nil
}

// ResetPassword sets a new password for the user with the given email, bypassing the current one.
func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	if len(pwd) < svc.conf.Password.MinLength {
		return core.NewValidationError(errors.Errorf("New password must be at least %d characters long.", svc.conf.Password.MinLength))
	}

	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd, svc.conf.Password.HashCost); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *Service) Count(ctx context.Context, roles ...Role) (int, error) {
	return svc.repo.CountUsers(ctx, roles...)
}
