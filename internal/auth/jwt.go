package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskflow/internal/model"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid claims")
)

// Claims identify the acting employee.
type Claims struct {
	EmployeeID int64      `json:"employee_id"`
	Role       model.Role `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, employeeID int64, role model.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		EmployeeID: employeeID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(employeeID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the signature and expiry and returns the actor the token carries.
func ParseToken(secret, tokenStr string) (model.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return model.Actor{}, ErrInvalidToken
	}

	if claims.EmployeeID <= 0 {
		return model.Actor{}, ErrInvalidClaims
	}
	role := claims.Role
	if role == "" {
		role = model.RoleEmployee
	}
	if role != model.RoleEmployee && role != model.RoleAdmin {
		return model.Actor{}, ErrInvalidClaims
	}

	return model.Actor{ID: claims.EmployeeID, Role: role}, nil
}
