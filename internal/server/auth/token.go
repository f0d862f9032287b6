// Package auth выпускает и проверяет access-токены дверей. Дверь
// регистрируется один раз с общим ключом enrollment и дальше ходит на
// pull/push/stream с JWT.
package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DoorClaims представляет JWT claims для двери.
type DoorClaims struct {
	DoorID     string `json:"door_id"`
	DeviceName string `json:"device_name"`
	jwt.RegisteredClaims
}

// Config содержит конфигурацию для выпуска токенов.
type Config struct {
	Secret         []byte
	EnrollKey      string
	AccessTokenTTL time.Duration
}

// VerifyEnrollKey сравнивает ключ регистрации за постоянное время.
func VerifyEnrollKey(cfg Config, key string) error {
	if cfg.EnrollKey == "" {
		return fmt.Errorf("enrollment disabled: no enroll key configured")
	}
	if subtle.ConstantTimeCompare([]byte(cfg.EnrollKey), []byte(key)) != 1 {
		return fmt.Errorf("invalid enroll key")
	}
	return nil
}

// GenerateDoorToken создает новый JWT access token двери.
func GenerateDoorToken(cfg Config, doorID, deviceName string) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.AccessTokenTTL)

	claims := DoorClaims{
		DoorID:     doorID,
		DeviceName: deviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "doorsync",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, int64(cfg.AccessTokenTTL.Seconds()), nil
}

// ValidateDoorToken валидирует и парсит JWT access token двери.
func ValidateDoorToken(cfg Config, tokenString string) (*DoorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DoorClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*DoorClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
