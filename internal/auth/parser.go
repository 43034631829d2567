package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"deviation-service/internal/model"
)

type Claims struct {
	UserID     uuid.UUID      `json:"sub"`
	FullName   string         `json:"name"`
	Role       model.UserRole `json:"role"`
	Department string         `json:"department"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
