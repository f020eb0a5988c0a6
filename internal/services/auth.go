package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lifenippon/apiserver/internal/mailer"
	"github.com/lifenippon/apiserver/internal/metrics"
	"github.com/lifenippon/apiserver/internal/store"
	"github.com/lifenippon/apiserver/types"
)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByResetLink(ctx context.Context, link string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetPassword(ctx context.Context, id int, salt, hashedPassword string) error
	SetResetLink(ctx context.Context, id int, link string) error
}

// AuthService coordinates the account lifecycle: two-step signup via
// activation link, signin, forgot/reset password, and federated
// login. Every low-level storage, crypto, or provider failure is
// translated to one of the closed error kinds before returning.
type AuthService struct {
	users      UserRepository
	mail       mailer.Sender
	identity   IdentityVerifier
	activation *TokenService
	reset      *TokenService
	session    *TokenService
	clientURL  string
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// AuthParams collects the dependencies of an AuthService.
type AuthParams struct {
	Users      UserRepository
	Mail       mailer.Sender
	Identity   IdentityVerifier
	Activation *TokenService
	Reset      *TokenService
	Session    *TokenService
	ClientURL  string
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

func NewAuthService(p AuthParams) *AuthService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if p.Metrics == nil {
		p.Metrics = metrics.NewCollector()
	}
	return &AuthService{
		users:      p.Users,
		mail:       p.Mail,
		identity:   p.Identity,
		activation: p.Activation,
		reset:      p.Reset,
		session:    p.Session,
		clientURL:  strings.TrimRight(p.ClientURL, "/"),
		metrics:    p.Metrics,
		logger:     logger,
	}
}

// PreSignup checks email availability and mails an activation link.
// No account exists until the link is redeemed.
func (s *AuthService) PreSignup(ctx context.Context, name, email, password string) error {
	email = normalizeEmail(email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("looking up email: %w", err)
	}

	token, err := s.activation.IssueActivation(name, email, password)
	if err != nil {
		return fmt.Errorf("issuing activation token: %w", err)
	}

	link := fmt.Sprintf("%s/auth/account/activate/%s", s.clientURL, token)
	return s.dispatch(ctx, mailer.Email{
		To:      []string{email},
		Subject: "Account activation link",
		HTML: fmt.Sprintf(`
			<p>Please use the following link to activate your account</p>
			<p>%s</p>
			<hr />
			<p>This email may contain sensitive information</p>
			<p>%s</p>`, link, s.clientURL),
	})
}

// Signup redeems an activation token and creates the account. The
// caller must still sign in afterwards; no session is issued here.
// Replaying a token after the account exists surfaces
// ErrDuplicateAccount via the store's uniqueness constraint.
func (s *AuthService) Signup(ctx context.Context, activationToken string) (types.User, error) {
	claims, err := s.activation.VerifyActivation(activationToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return types.User{}, ErrActivationExpired
		}
		return types.User{}, ErrActivationInvalid
	}

	username := newUsername()
	salt := MakeSalt()
	user := types.User{
		Username:       username,
		Name:           claims.Name,
		Email:          normalizeEmail(claims.Email),
		Profile:        s.profileURL(username),
		Role:           types.RoleUser,
		Salt:           salt,
		HashedPassword: DeriveDigest(claims.Password, salt),
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrDuplicateAccount
		}
		return types.User{}, fmt.Errorf("creating account: %w", err)
	}

	s.metrics.RecordSignup()
	return created.Public(), nil
}

// Signin verifies credentials and issues a session token alongside
// the public projection of the account.
func (s *AuthService) Signin(ctx context.Context, email, password string) (string, types.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.RecordSigninFailed()
			return "", types.User{}, ErrUserNotFound
		}
		return "", types.User{}, fmt.Errorf("looking up email: %w", err)
	}

	if !VerifyPassword(password, user.Salt, user.HashedPassword) {
		s.metrics.RecordSigninFailed()
		return "", types.User{}, ErrBadCredentials
	}

	token, err := s.session.IssueSubject(strconv.Itoa(user.ID))
	if err != nil {
		return "", types.User{}, fmt.Errorf("issuing session token: %w", err)
	}

	s.metrics.RecordSignin()
	return token, user.Public(), nil
}

// ForgotPassword issues a reset token, persists its string form on
// the account (superseding any earlier outstanding link), and mails
// it. Only the most recently issued link can redeem.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("looking up email: %w", err)
	}

	token, err := s.reset.IssueSubject(strconv.Itoa(user.ID))
	if err != nil {
		return fmt.Errorf("issuing reset token: %w", err)
	}

	if err := s.users.SetResetLink(ctx, user.ID, token); err != nil {
		return fmt.Errorf("storing reset link: %w", err)
	}

	link := fmt.Sprintf("%s/auth/password/reset/%s", s.clientURL, token)
	return s.dispatch(ctx, mailer.Email{
		To:      []string{user.Email},
		Subject: "Password reset link",
		HTML: fmt.Sprintf(`
			<p>Please use the following link to reset your password</p>
			<p>%s</p>
			<hr />
			<p>This email may contain sensitive information</p>
			<p>%s</p>`, link, s.clientURL),
	})
}

// ResetPassword redeems a reset link. The account is looked up by the
// exact stored link string, not by the token's decoded subject: a
// token superseded by a later forgot-password request no longer
// matches any row and is reported stale. On success the salt and
// digest are regenerated and the stored link cleared.
func (s *AuthService) ResetPassword(ctx context.Context, resetLink, newPassword string) error {
	if _, err := s.reset.VerifySubject(resetLink); err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return ErrResetExpired
		}
		return ErrResetInvalid
	}

	user, err := s.users.GetByResetLink(ctx, resetLink)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrResetLinkStale
		}
		return fmt.Errorf("looking up reset link: %w", err)
	}

	salt := MakeSalt()
	if err := s.users.SetPassword(ctx, user.ID, salt, DeriveDigest(newPassword, salt)); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// GoogleLogin verifies a Google identity assertion and exchanges it
// for a local session, creating the account on first login. An
// assertion whose email the provider has not verified is rejected
// outright.
func (s *AuthService) GoogleLogin(ctx context.Context, assertion string) (string, types.User, error) {
	claims, err := s.identity.VerifyAssertion(ctx, assertion)
	if err != nil {
		return "", types.User{}, ErrIdentityInvalid
	}
	if !claims.EmailVerified {
		return "", types.User{}, ErrIdentityNotVerified
	}

	email := normalizeEmail(claims.Email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", types.User{}, fmt.Errorf("looking up email: %w", err)
		}
		user, err = s.createFederatedAccount(ctx, claims, email)
		if err != nil {
			return "", types.User{}, err
		}
		s.metrics.RecordSignup()
	}

	token, err := s.session.IssueSubject(strconv.Itoa(user.ID))
	if err != nil {
		return "", types.User{}, fmt.Errorf("issuing session token: %w", err)
	}

	s.metrics.RecordSignin()
	return token, user.Public(), nil
}

// VerifySession validates a session token and returns the account id
// it was issued for.
func (s *AuthService) VerifySession(token string) (int, error) {
	subject, err := s.session.VerifySubject(token)
	if err != nil {
		return 0, err
	}
	id, convErr := strconv.Atoi(subject)
	if convErr != nil || id < 1 {
		return 0, ErrTokenInvalid
	}
	return id, nil
}

func (s *AuthService) createFederatedAccount(ctx context.Context, claims IdentityClaims, email string) (types.User, error) {
	username := newUsername()
	salt := MakeSalt()
	// Baseline credential seeded from the provider nonce so the
	// account can later go through the password-reset flow.
	password := claims.Nonce + MakeSalt()

	user := types.User{
		Username:       username,
		Name:           claims.Name,
		Email:          email,
		Profile:        s.profileURL(username),
		Role:           types.RoleUser,
		Salt:           salt,
		HashedPassword: DeriveDigest(password, salt),
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrDuplicateAccount
		}
		return types.User{}, fmt.Errorf("creating account: %w", err)
	}
	return created, nil
}

func (s *AuthService) dispatch(ctx context.Context, email mailer.Email) error {
	if err := s.mail.Send(ctx, email); err != nil {
		s.metrics.RecordEmailFailed()
		s.logger.Error("problem sending email", "subject", email.Subject, "err", err)
		return fmt.Errorf("sending email: %w", err)
	}
	s.metrics.RecordEmailSent()
	return nil
}

func (s *AuthService) profileURL(username string) string {
	return fmt.Sprintf("%s/profile/%s", s.clientURL, username)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// newUsername generates a short, collision-resistant handle.
func newUsername() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
