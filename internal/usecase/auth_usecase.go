package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	repo "app/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限
const accessTokenTTL = time.Hour

type StaffDTO struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginOutput struct {
	User        StaffDTO `json:"user"`
	AccessToken string   `json:"access_token"`
	ExpiresIn   int      `json:"expires_in"`
}

type AuthUsecase struct {
	staff     repo.StaffUserRepository
	jwtSecret []byte
	now       func() time.Time
}

func NewAuthUsecase(staff repo.StaffUserRepository, jwtSecret string) *AuthUsecase {
	return &AuthUsecase{
		staff:     staff,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// Login はスタッフのメール/パスワードを検証してアクセストークンを発行する。
// メール不一致とパスワード不一致は同じメッセージにする（存在の有無を漏らさない）。
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (LoginOutput, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return LoginOutput{}, NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	user, err := u.staff.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !user.IsActive {
		return LoginOutput{}, NewHTTPError(http.StatusForbidden, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	now := u.now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  now.Add(accessTokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.jwtSecret)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}

	loginAt := now
	user.LastLoginAt = &loginAt
	// 最終ログインの更新失敗でログイン自体は失敗させない
	_ = u.staff.Update(ctx, user)

	return LoginOutput{
		User: StaffDTO{
			ID:    user.ID,
			Email: user.Email,
			Role:  string(user.Role),
		},
		AccessToken: token,
		ExpiresIn:   int(accessTokenTTL.Seconds()),
	}, nil
}
