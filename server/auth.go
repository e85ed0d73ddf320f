// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerAuth rejects requests whose bearer token is not one of tokens.
func BearerAuth(tokens []string) gin.HandlerFunc {
	accepted := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			accepted = append(accepted, []byte(t))
		}
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})

			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || !validToken(accepted, strings.TrimSpace(token)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})

			return
		}

		c.Next()
	}
}

func validToken(accepted [][]byte, token string) bool {
	if token == "" {
		return false
	}

	found := 0
	for _, a := range accepted {
		found |= subtle.ConstantTimeCompare(a, []byte(token))
	}

	return found == 1
}
