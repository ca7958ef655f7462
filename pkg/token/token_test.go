package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 測試簽發後能解析回原本的 claims
func TestGenerateParseRoundTrip(t *testing.T) {
	signed, err := GenerateJWT("user-1", "alice", "alice@test.com", "chat_service")
	require.NoError(t, err)

	claims, err := ParseJWT(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.MemberID)
	assert.Equal(t, "alice", claims.Name)
	assert.Equal(t, "alice@test.com", claims.Email)
	assert.Equal(t, "chat_service", claims.Issuer)
}

// 測試過期 token 解析失敗
func TestParseJWTExpired(t *testing.T) {
	claims := Claims{
		MemberID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(JWTSecret)
	require.NoError(t, err)

	_, err = ParseJWT(signed)
	assert.Error(t, err)
}

// 測試錯誤簽名與非 HMAC 演算法都被拒絕
func TestParseJWTBadSignature(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{MemberID: "user-1"}).
		SignedString([]byte("other_secret"))
	require.NoError(t, err)

	_, err = ParseJWT(signed)
	assert.Error(t, err)

	_, err = ParseJWT("not-a-jwt")
	assert.Error(t, err)
}

// 測試 wrapper 變數可以在測試時替換
func TestWrapperOverride(t *testing.T) {
	origParse := ParseJWTFunc
	origGen := GenerateJWTFunc
	defer func() {
		ParseJWTFunc = origParse
		GenerateJWTFunc = origGen
	}()

	ParseJWTFunc = func(tokenStr string) (*Claims, error) {
		return nil, errors.New("mocked parse fail")
	}
	_, err := ParseJWTWrapper("anything")
	assert.EqualError(t, err, "mocked parse fail")

	var gotIssuer string
	GenerateJWTFunc = func(memberID, name, email, issuer string) (string, error) {
		gotIssuer = issuer
		return "mocked-token", nil
	}
	signed, err := GenerateJWTWrapper("user-1", "alice", "alice@test.com")
	require.NoError(t, err)
	assert.Equal(t, "mocked-token", signed)
	assert.Empty(t, gotIssuer)
}
