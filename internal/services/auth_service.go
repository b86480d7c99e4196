package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"support-chat/config"
	"support-chat/internal/domain/user"
	"support-chat/internal/repository"
	chat_errors "support-chat/pkg/errors"
	"support-chat/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo   repository.UserRepository
	convRepo   repository.ConversationRepository
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, convRepo repository.ConversationRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		convRepo:   convRepo,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.JWTExpiryMin) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshExpiry) * 24 * time.Hour,
		logger:     logger.GetGlobalLogger(),
	}
}

type RegisterInput struct {
	Name        string
	DisplayName string
	Email       string
	Password    string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"-"`
	ExpiresIn    int64    `json:"expires_in"`
	Roles        []int    `json:"roles"`
	User         UserInfo `json:"user"`

	// Set for admins on login.
	UserID             string `json:"user_id,omitempty"`
	LastConversationID string `json:"last_conversation_id,omitempty"`
}

type AccessClaims struct {
	UserID      string `json:"sub"`
	SessionID   string `json:"sid"`
	DisplayName string `json:"name"`
	Roles       []int  `json:"roles"`
	jwt.RegisteredClaims
}

// Register creates a user-role principal. Roles sent by the client are never
// honored; admins are provisioned by the migrate tool.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (UserInfo, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.DisplayName == "" {
		in.DisplayName = strings.TrimSpace(in.Name)
	}
	in.Name = strings.ToLower(strings.TrimSpace(in.Name))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateRegister(in); err != nil {
		return UserInfo{}, err
	}

	if err := s.ensureIdentityAvailable(ctx, in); err != nil {
		return UserInfo{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return UserInfo{}, err
	}

	now := time.Now().UTC()
	newUser := &user.User{
		ID:           uuid.New(),
		Name:         in.Name,
		DisplayName:  in.DisplayName,
		Email:        in.Email,
		PasswordHash: hash,
		LastSeen:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	newUser.SetRoles(user.RoleUser)

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return UserInfo{}, err
	}
	return toUserInfo(*newUser), nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return AuthResponse{}, chat_errors.NewValidationError("credentials", "email and password are required")
	}

	u, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return AuthResponse{}, chat_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}
	if err := comparePassword(u.PasswordHash, in.Password); err != nil {
		return AuthResponse{}, chat_errors.ErrUnauthorized
	}

	resp, err := s.issue(ctx, u)
	if err != nil {
		return AuthResponse{}, err
	}

	if u.IsAdmin() {
		resp.UserID = u.ID.String()
		latest, err := s.convRepo.LatestByAdmin(ctx, u.ID)
		switch {
		case err == nil:
			resp.LastConversationID = latest.ID.String()
		case !errors.Is(err, chat_errors.ErrNotFound):
			return AuthResponse{}, err
		}
	}
	return resp, nil
}

// Refresh rotates the refresh token held in cookie and issues a new access
// token. The cookie value has the form "<session id>.<token>".
func (s *AuthService) Refresh(ctx context.Context, cookie string) (AuthResponse, error) {
	sessionID, token, ok := splitRefreshCookie(cookie)
	if !ok {
		return AuthResponse{}, chat_errors.ErrUnauthorized
	}

	session, err := s.userRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return AuthResponse{}, chat_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}
	if session.IsRevoked || time.Now().After(session.ExpiresAt) {
		return AuthResponse{}, chat_errors.ErrUnauthorized
	}
	if !compareRefreshToken(session.RefreshTokenHash, token) {
		// A stale token means the cookie leaked or was replayed.
		if err := s.userRepo.RevokeSession(ctx, session.ID); err != nil {
			s.logger.Error(ctx, "revoke replayed session failed",
				zap.String("session_id", session.ID.String()),
				zap.String("user_id", session.UserID.String()),
				zap.Error(err))
		}
		return AuthResponse{}, chat_errors.ErrUnauthorized
	}

	u, err := s.userRepo.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return AuthResponse{}, chat_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}

	newToken, err := generateToken(32)
	if err != nil {
		return AuthResponse{}, err
	}
	if err := s.userRepo.RotateSession(ctx, session.ID, session.RefreshTokenHash, hashRefreshToken(newToken), time.Now().UTC().Add(s.refreshTTL)); err != nil {
		return AuthResponse{}, err
	}

	accessToken, expiresIn, err := s.newAccessToken(u, session.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: joinRefreshCookie(session.ID, newToken),
		ExpiresIn:    expiresIn,
		Roles:        toUserInfo(u).Roles,
		User:         toUserInfo(u),
	}, nil
}

// Logout revokes the session named by the cookie when the cookie also carries
// that session's current token. Unknown, malformed or stale cookies are not an
// error and revoke nothing.
func (s *AuthService) Logout(ctx context.Context, cookie string) error {
	sessionID, token, ok := splitRefreshCookie(cookie)
	if !ok {
		return nil
	}
	session, err := s.userRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return nil
		}
		return err
	}
	if session.IsRevoked || !compareRefreshToken(session.RefreshTokenHash, token) {
		return nil
	}
	return s.userRepo.RevokeSession(ctx, sessionID)
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (UserInfo, error) {
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return UserInfo{}, err
	}
	return toUserInfo(u), nil
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chat_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}
	return *claims, nil
}

// Authenticate turns a bearer token into the calling principal.
func (s *AuthService) Authenticate(tokenString string) (Principal, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return Principal{}, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Principal{}, chat_errors.ErrUnauthorized
	}
	sessionID, _ := uuid.Parse(claims.SessionID)
	return Principal{
		ID:          userID,
		SessionID:   sessionID,
		DisplayName: claims.DisplayName,
		Roles:       user.ParseRoles(claims.Roles),
	}, nil
}

func (s *AuthService) issue(ctx context.Context, u user.User) (AuthResponse, error) {
	refreshToken, err := generateToken(32)
	if err != nil {
		return AuthResponse{}, err
	}

	now := time.Now().UTC()
	session := &user.Session{
		ID:               uuid.New(),
		UserID:           u.ID,
		RefreshTokenHash: hashRefreshToken(refreshToken),
		ExpiresAt:        now.Add(s.refreshTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.userRepo.CreateSession(ctx, session); err != nil {
		return AuthResponse{}, err
	}

	accessToken, expiresIn, err := s.newAccessToken(u, session.ID)
	if err != nil {
		return AuthResponse{}, err
	}

	info := toUserInfo(u)
	return AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: joinRefreshCookie(session.ID, refreshToken),
		ExpiresIn:    expiresIn,
		Roles:        info.Roles,
		User:         info,
	}, nil
}

func (s *AuthService) ensureIdentityAvailable(ctx context.Context, in RegisterInput) error {
	if _, err := s.userRepo.GetUserByName(ctx, in.Name); err == nil {
		return fmt.Errorf("name %q: %w", in.Name, chat_errors.ErrAlreadyExists)
	} else if !errors.Is(err, chat_errors.ErrNotFound) {
		return err
	}

	if _, err := s.userRepo.GetUserByEmail(ctx, in.Email); err == nil {
		return fmt.Errorf("email: %w", chat_errors.ErrAlreadyExists)
	} else if !errors.Is(err, chat_errors.ErrNotFound) {
		return err
	}
	return nil
}

func (s *AuthService) newAccessToken(u user.User, sessionID uuid.UUID) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := AccessClaims{
		UserID:      u.ID.String(),
		SessionID:   sessionID.String(),
		DisplayName: u.DisplayName,
		Roles:       toUserInfo(u).Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.accessTTL.Seconds()), nil
}

func joinRefreshCookie(sessionID uuid.UUID, token string) string {
	return sessionID.String() + "." + token
}

func splitRefreshCookie(cookie string) (uuid.UUID, string, bool) {
	rawID, token, found := strings.Cut(cookie, ".")
	if !found || token == "" {
		return uuid.Nil, "", false
	}
	sessionID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", false
	}
	return sessionID, token, true
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func compareRefreshToken(hash, token string) bool {
	computed := hashRefreshToken(token)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(computed)) == 1
}

func validateRegister(in RegisterInput) error {
	vErr := &chat_errors.ValidationError{}

	if n := utf8.RuneCountInString(in.Name); n < 3 || n > 30 {
		vErr.Add("name", "must be between 3 and 30 characters")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		vErr.Add("email", "must be a valid email address")
	}
	if msg := passwordProblem(in.Password); msg != "" {
		vErr.Add("password", msg)
	}

	if len(vErr.Fields) > 0 {
		return vErr
	}
	return nil
}

// passwordProblem describes the first complexity rule the password breaks.
func passwordProblem(password string) string {
	if utf8.RuneCountInString(password) < 8 {
		return "must be at least 8 characters"
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	switch {
	case !upper:
		return "must contain an uppercase letter"
	case !lower:
		return "must contain a lowercase letter"
	case !digit:
		return "must contain a digit"
	case !symbol:
		return "must contain a special character"
	}
	return ""
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func comparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
