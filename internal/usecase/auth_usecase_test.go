package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret"

func staffUser(t *testing.T, password string) *model.StaffUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)
	return &model.StaffUser{
		ID:           5,
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		TokenVersion: 3,
		IsActive:     true,
	}
}

func TestAuth_Login_Success(t *testing.T) {
	staff := new(StaffUserRepoMock)
	user := staffUser(t, "password123")
	staff.On("FindByEmail", mock.Anything, "admin@example.com").Return(user, nil)
	staff.On("Update", mock.Anything, mock.MatchedBy(func(u *model.StaffUser) bool {
		return u.LastLoginAt != nil
	})).Return(nil)

	uc := usecase.NewAuthUsecase(staff, testJWTSecret)

	// 大文字と前後空白は正規化される
	out, err := uc.Login(context.Background(), usecase.LoginInput{
		Email:    "  Admin@Example.com ",
		Password: "password123",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(5), out.User.ID)
	assert.Equal(t, "ADMIN", out.User.Role)
	assert.Equal(t, 3600, out.ExpiresIn)

	token, err := jwt.Parse(out.AccessToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	assert.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "5", claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
	assert.Equal(t, float64(3), claims["tv"])

	staff.AssertExpectations(t)
}

func TestAuth_Login_MissingFields(t *testing.T) {
	uc := usecase.NewAuthUsecase(new(StaffUserRepoMock), testJWTSecret)

	_, err := uc.Login(context.Background(), usecase.LoginInput{Email: "", Password: "x"})
	assertHTTPStatus(t, err, http.StatusBadRequest)

	_, err = uc.Login(context.Background(), usecase.LoginInput{Email: "a@b.com", Password: ""})
	assertHTTPStatus(t, err, http.StatusBadRequest)
}

// メール不存在とパスワード不一致は同じ401メッセージにする
func TestAuth_Login_UnknownEmail(t *testing.T) {
	staff := new(StaffUserRepoMock)
	staff.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, repo.ErrNotFound)

	uc := usecase.NewAuthUsecase(staff, testJWTSecret)

	_, err := uc.Login(context.Background(), usecase.LoginInput{Email: "ghost@example.com", Password: "x"})
	assertHTTPStatus(t, err, http.StatusUnauthorized)
	assertErrContains(t, err, "invalid credentials")
}

func TestAuth_Login_WrongPassword(t *testing.T) {
	staff := new(StaffUserRepoMock)
	staff.On("FindByEmail", mock.Anything, "admin@example.com").Return(staffUser(t, "password123"), nil)

	uc := usecase.NewAuthUsecase(staff, testJWTSecret)

	_, err := uc.Login(context.Background(), usecase.LoginInput{Email: "admin@example.com", Password: "wrong"})
	assertHTTPStatus(t, err, http.StatusUnauthorized)
	assertErrContains(t, err, "invalid credentials")

	staff.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestAuth_Login_InactiveUser(t *testing.T) {
	staff := new(StaffUserRepoMock)
	user := staffUser(t, "password123")
	user.IsActive = false
	staff.On("FindByEmail", mock.Anything, "admin@example.com").Return(user, nil)

	uc := usecase.NewAuthUsecase(staff, testJWTSecret)

	_, err := uc.Login(context.Background(), usecase.LoginInput{Email: "admin@example.com", Password: "password123"})
	assertHTTPStatus(t, err, http.StatusForbidden)
}
