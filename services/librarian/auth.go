// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package librarian

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// cardNumberKey is the gin context key carrying the authenticated patron.
const cardNumberKey = "card_number"

// TokenService issues and validates patron session tokens.
//
// Description:
//
//	HS256 only. The card number rides in a custom claim so the query
//	handler can bind history to the authenticated patron instead of
//	trusting the request body. An empty Secret disables authentication
//	entirely, which is the expected mode for local development.
type TokenService struct {
	Secret   string
	Issuer   string
	Duration time.Duration
}

// Claims is the token payload.
type Claims struct {
	CardNumber string `json:"card_number"`
	jwt.RegisteredClaims
}

// Enabled reports whether tokens are issued and enforced.
func (s *TokenService) Enabled() bool {
	return s != nil && s.Secret != ""
}

// Sign issues a token for cardNumber.
func (s *TokenService) Sign(cardNumber string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("token service not configured")
	}
	now := time.Now()
	claims := Claims{
		CardNumber: cardNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   cardNumber,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.Duration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
}

// Parse validates tokenString and returns its claims.
//
// Outputs:
//   - *Claims: The validated payload.
//   - error: Non-nil for expired, malformed, or non-HS256 tokens.
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthMiddleware enforces a Bearer token when the service is enabled and
// stores the patron's card number on the request context. With no secret
// configured it passes every request through untouched.
func AuthMiddleware(svc *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !svc.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "missing bearer token",
				Code:  "UNAUTHORIZED",
			})
			return
		}

		claims, err := svc.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "invalid token: " + err.Error(),
				Code:  "UNAUTHORIZED",
			})
			return
		}

		c.Set(cardNumberKey, claims.CardNumber)
		c.Next()
	}
}

// authenticatedCard returns the card number the middleware stored, or "".
func authenticatedCard(c *gin.Context) string {
	v, ok := c.Get(cardNumberKey)
	if !ok {
		return ""
	}
	card, _ := v.(string)
	return card
}
