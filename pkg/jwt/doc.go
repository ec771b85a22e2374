// Package jwt issues and validates HS256 session tokens on top of
// github.com/golang-jwt/jwt/v5.
//
// Tokens carry exactly {user_id, sub, exp, iat} with sub == user_id. The
// signing key is injected at construction; tokens signed with one key never
// validate under another. Validation accepts only HS256 and treats a token as
// expired as soon as now >= exp.
//
//	svc, err := jwt.New([]byte(secret), 24*time.Hour)
//	token, err := svc.Issue(userID)
//	claims, err := svc.Validate(token)
//
// Extractors pull tokens from the Authorization header or a cookie and can be
// chained with ChainExtractors.
package jwt
