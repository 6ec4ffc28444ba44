package handler

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

func jwtSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("dev-only-insecure-secret")
}

// generateJWT генерує JWT з анонімним ID та user ID
func generateJWT(userID, anonID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"anon_id": anonID,
		"exp":     time.Now().Add(time.Hour * 72).Unix(),
		"iss":     "friendfinder-service",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// validateToken перевіряє підпис і повертає (userID, anonID).
func validateToken(tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret(), nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token or expired")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}
	userID, _ := claims["user_id"].(string)
	anonID, _ := claims["anon_id"].(string)
	if userID == "" {
		return "", "", errors.New("token missing user id")
	}
	return userID, anonID, nil
}

// tokenFromRequest дістає токен з Authorization заголовка або з query
// параметра "token" (для WebSocket upgrade запитів з браузера).
func tokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return c.Query("token")
}

// AuthRequired — middleware, що кладе user_id/anon_id у контекст запиту.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}
		userID, anonID, err := validateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("user_id", userID)
		c.Set("anon_id", anonID)
		c.Next()
	}
}

// GetAnonID створює нову анонімну ідентичність та повертає JWT
func (h *Handler) GetAnonID(c *gin.Context) {
	userID := uuid.New().String()
	anonID := uuid.New().String()

	token, err := generateJWT(userID, anonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": userID, "anon_id": anonID})
}
