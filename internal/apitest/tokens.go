package apitest

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// tokenIssuer signs HS256 access and refresh tokens. Refresh tokens rotate: each
// one can be exchanged once, after which it is blacklisted.
type tokenIssuer struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration

	mu         sync.Mutex
	generation int64
	refreshJTI map[string]int64 // live refresh jti -> user id
}

func newTokenIssuer(secret []byte, accessExpiry, refreshExpiry time.Duration) *tokenIssuer {
	return &tokenIssuer{
		secret:        secret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		refreshJTI:    make(map[string]int64),
	}
}

type tokenPair struct {
	Access  string
	Refresh string
}

func (t *tokenIssuer) Issue(userID int64) (tokenPair, error) {
	t.mu.Lock()
	generation := t.generation
	t.mu.Unlock()

	now := NowTimeFunc()
	access, err := t.sign(jwtlib.MapClaims{
		"sub":        strconv.FormatInt(userID, 10),
		"token_type": tokenTypeAccess,
		"gen":        generation,
		"iat":        now.Unix(),
		"exp":        now.Add(t.accessExpiry).Unix(),
		"jti":        uuid.New().String(),
	})
	if err != nil {
		return tokenPair{}, err
	}

	refreshID := uuid.New().String()
	refresh, err := t.sign(jwtlib.MapClaims{
		"sub":        strconv.FormatInt(userID, 10),
		"token_type": tokenTypeRefresh,
		"iat":        now.Unix(),
		"exp":        now.Add(t.refreshExpiry).Unix(),
		"jti":        refreshID,
	})
	if err != nil {
		return tokenPair{}, err
	}

	t.mu.Lock()
	t.refreshJTI[refreshID] = userID
	t.mu.Unlock()
	return tokenPair{Access: access, Refresh: refresh}, nil
}

// ValidateAccess returns the user id of a live access token.
func (t *tokenIssuer) ValidateAccess(raw string) (int64, error) {
	claims, err := t.parse(raw, tokenTypeAccess)
	if err != nil {
		return 0, err
	}
	gen, _ := claims["gen"].(float64)
	t.mu.Lock()
	current := t.generation
	t.mu.Unlock()
	if int64(gen) < current {
		return 0, fmt.Errorf("token has been invalidated")
	}
	return subject(claims)
}

// Rotate exchanges a refresh token for a new pair and blacklists the old one.
func (t *tokenIssuer) Rotate(raw string) (tokenPair, error) {
	claims, err := t.parse(raw, tokenTypeRefresh)
	if err != nil {
		return tokenPair{}, err
	}
	jti, _ := claims["jti"].(string)

	t.mu.Lock()
	userID, live := t.refreshJTI[jti]
	delete(t.refreshJTI, jti)
	t.mu.Unlock()
	if !live {
		return tokenPair{}, fmt.Errorf("token is blacklisted")
	}
	return t.Issue(userID)
}

// Revoke blacklists a refresh token; unknown tokens are ignored.
func (t *tokenIssuer) Revoke(raw string) {
	claims, err := t.parse(raw, tokenTypeRefresh)
	if err != nil {
		return
	}
	jti, _ := claims["jti"].(string)
	t.mu.Lock()
	delete(t.refreshJTI, jti)
	t.mu.Unlock()
}

// ExpireAccessTokens invalidates every access token issued so far.
func (t *tokenIssuer) ExpireAccessTokens() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
}

// RevokeAllRefresh blacklists every refresh token issued so far.
func (t *tokenIssuer) RevokeAllRefresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshJTI = make(map[string]int64)
}

func (t *tokenIssuer) sign(claims jwtlib.MapClaims) (string, error) {
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (t *tokenIssuer) parse(raw, tokenType string) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(token *jwtlib.Token) (any, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwtlib.WithTimeFunc(NowTimeFunc), jwtlib.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims["token_type"] != tokenType {
		return nil, fmt.Errorf("token has wrong type")
	}
	return claims, nil
}

func subject(claims jwtlib.MapClaims) (int64, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(sub, 10, 64)
}
