package utils

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Hash password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

// Check password
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), expiry: expiry}
}

func (t *TokenIssuer) Expiry() time.Duration {
	return t.expiry
}

// Generate JWT token
func (t *TokenIssuer) GenerateToken(userID, salonID string) (string, error) {
	if len(t.secret) == 0 {
		return "", errors.New("JWT_SECRET not set")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     userID,
		"salonId": salonID,
		"exp":     now.Add(t.expiry).Unix(),
		"iat":     now.Unix(),
	})
	return token.SignedString(t.secret)
}

// Auth middleware
func (t *TokenIssuer) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			if cookie, err := c.Cookie("token"); err == nil {
				tokenString = cookie
			}
		}
		if tokenString == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		if len(tokenString) > 7 && strings.ToUpper(tokenString[0:6]) == "BEARER" {
			tokenString = tokenString[7:]
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return t.secret, nil
		})
		if err != nil || !token.Valid {
			RespondWithError(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			RespondWithError(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		c.Set("userId", claims["sub"])
		c.Set("salonId", claims["salonId"])
		c.Next()
	}
}

// Identity reads the user and salon ids set by AuthMiddleware.
func Identity(c *gin.Context) (userID, salonID uuid.UUID, ok bool) {
	rawUser, _ := c.Get("userId")
	rawSalon, _ := c.Get("salonId")
	u, _ := rawUser.(string)
	s, _ := rawSalon.(string)

	var err error
	if userID, err = uuid.Parse(u); err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	if salonID, err = uuid.Parse(s); err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, salonID, true
}
