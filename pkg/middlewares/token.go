package middlewares

import (
	t_token "secure_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenName get member name form token, set c.locals name
	TokenName = "MemberName"
	//TokenEmail get member email form token, set c.locals name
	TokenEmail = "MemberEmail"
)

// JWTMiddleware validates JWT from the auth query parameter or cookie
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 優先取連線參數的 token
		tokenStr := c.Query(QueryToken)

		// 如果查詢參數中沒有 token，則嘗試從 Cookie 中獲取
		// cookie header 缺失或格式錯誤時 Cookies 回傳空字串
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		// 統一回泛用錯誤，不暴露缺 token 還是壞 token
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		// 簽名與過期都在 ParseJWT 內驗證
		claims, err := t_token.ParseJWTWrapper(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenName, claims.Name)
		c.Locals(TokenEmail, claims.Email)

		return c.Next()
	}
}
