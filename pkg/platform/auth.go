/*
Copyright The Modelserve Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Bearer token handling for the Modelserve API. Tokens are short-lived
// JWTs signed with the caller's secret access key; the platform validates
// them against the key registered for the access key ID.
package platform

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	tokenIssuer   = "modelserve-client"
	tokenAudience = "modelserve"
	tokenTTL      = 15 * time.Minute

	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// MintToken builds a signed bearer token for the given credentials.
func MintToken(creds Credentials) (string, error) {
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return "", fmt.Errorf("credentials are not configured")
	}

	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Audience([]string{tokenAudience}).
		Subject(creds.AccessKeyID).
		IssuedAt(now).
		Expiration(now.Add(tokenTTL)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	key, err := jwk.Import([]byte(creds.SecretAccessKey))
	if err != nil {
		return "", fmt.Errorf("failed to import signing key: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// VerifyToken parses and validates a bearer token, returning the subject
// (access key ID). The simulator uses it to authenticate requests the same
// way the managed platform does.
func VerifyToken(tokenStr, secret string) (string, error) {
	key, err := jwk.Import([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to import verification key: %w", err)
	}
	tok, err := jwt.Parse([]byte(tokenStr),
		jwt.WithKey(jwa.HS256(), key),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithValidate(true))
	if err != nil {
		return "", fmt.Errorf("failed to parse jwt: %w", err)
	}
	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// ExtractBearer pulls the bearer token out of a request's Authorization
// header.
func ExtractBearer(req *http.Request) string {
	value := req.Header.Get(authHeader)
	return strings.TrimPrefix(value, bearerPrefix)
}
