package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFARequired        = errors.New("mfa code required")
	ErrMFAInvalid         = errors.New("invalid mfa code")
	ErrMFAUnavailable     = errors.New("mfa requires an encryption key")
	ErrMFANotSetUp        = errors.New("mfa setup required")
)

const mfaIssuer = "HRIMS"

type UserStore interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	MFASecret(ctx context.Context, userID string) ([]byte, bool, error)
	SaveMFASecret(ctx context.Context, userID string, sealed []byte) error
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
}

// SecretSealer protects MFA seeds at rest.
type SecretSealer interface {
	Configured() bool
	SealString(value string) ([]byte, error)
	OpenString(sealed []byte) (string, error)
}

type Service struct {
	Store  UserStore
	sealer SecretSealer
	secret string
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithSealer(sealer SecretSealer) Option {
	return func(s *Service) { s.sealer = sealer }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store UserStore, secret string, ttl time.Duration, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{Store: store, secret: secret, ttl: ttl, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type LoginInput struct {
	Email    string
	Password string
	MFACode  string
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Claims    Claims    `json:"-"`
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// Login checks the password, and the TOTP code when MFA is on, then issues a
// signed token. Unknown users and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	user, err := s.Store.FindActiveUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := CheckPassword(user.PasswordHash, in.Password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if user.MFAEnabled {
		if strings.TrimSpace(in.MFACode) == "" {
			return LoginResult{}, ErrMFARequired
		}
		if err := s.checkCode(user.MFASecret, in.MFACode); err != nil {
			return LoginResult{}, err
		}
	}

	claims := Claims{UserID: user.ID, Email: user.Email, Name: user.DisplayName}
	token, err := GenerateToken(s.secret, claims, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.Store.UpdateLastLogin(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("last login update failed")
	}
	return LoginResult{Token: token, ExpiresAt: s.now().Add(s.ttl), Claims: claims}, nil
}

// Verify parses a bearer token issued by Login.
func (s *Service) Verify(token string) (*Claims, error) {
	return ParseToken(s.secret, token)
}

// SetupMFA generates a fresh TOTP seed for the user. MFA stays off until
// EnableMFA confirms a code from the authenticator.
func (s *Service) SetupMFA(ctx context.Context, userID, email string) (MFASetup, error) {
	if !s.mfaAvailable() {
		return MFASetup{}, ErrMFAUnavailable
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: email,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return MFASetup{}, err
	}
	sealed, err := s.sealer.SealString(key.Secret())
	if err != nil {
		return MFASetup{}, err
	}
	if err := s.Store.SaveMFASecret(ctx, userID, sealed); err != nil {
		return MFASetup{}, err
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

func (s *Service) EnableMFA(ctx context.Context, userID, code string) error {
	return s.toggleMFA(ctx, userID, code, true)
}

func (s *Service) DisableMFA(ctx context.Context, userID, code string) error {
	return s.toggleMFA(ctx, userID, code, false)
}

func (s *Service) toggleMFA(ctx context.Context, userID, code string, enabled bool) error {
	if !s.mfaAvailable() {
		return ErrMFAUnavailable
	}
	sealed, _, err := s.Store.MFASecret(ctx, userID)
	if err != nil {
		return err
	}
	if len(sealed) == 0 {
		return ErrMFANotSetUp
	}
	if err := s.checkCode(sealed, code); err != nil {
		return err
	}
	return s.Store.SetMFAEnabled(ctx, userID, enabled)
}

func (s *Service) checkCode(sealed []byte, code string) error {
	if !s.mfaAvailable() {
		return ErrMFAUnavailable
	}
	secret, err := s.sealer.OpenString(sealed)
	if err != nil || secret == "" {
		s.log.Warn().Err(err).Msg("mfa secret could not be opened")
		return ErrMFAInvalid
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrMFAInvalid
	}
	return nil
}

func (s *Service) mfaAvailable() bool {
	return s.sealer != nil && s.sealer.Configured()
}
