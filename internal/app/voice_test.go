package app

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

func TestVoiceServiceGenerateLoginToken(t *testing.T) {
	secret := "test-secret"
	issuer := "issuer"
	domain := "example.com"
	user := "user123"

	svc := NewVoiceService(secret, issuer, domain)
	tokenString, err := svc.GenerateToken(user, VoiceActionLogin, "")
	if err != nil {
		t.Fatalf("generate login token error: %v", err)
	}

	claims := parseVoiceClaims(t, tokenString, secret)
	userURI := fmt.Sprintf("sip:.%s.%s.@%s", issuer, user, domain)

	if got := stringClaim(t, claims, "vxa"); got != VoiceActionLogin {
		t.Fatalf("vxa = %s, want %s", got, VoiceActionLogin)
	}
	if got := stringClaim(t, claims, "f"); got != userURI {
		t.Fatalf("f = %s, want %s", got, userURI)
	}
	if got := stringClaim(t, claims, "t"); got != userURI {
		t.Fatalf("t = %s, want %s", got, userURI)
	}
	if got := stringClaim(t, claims, "sub"); got != user {
		t.Fatalf("sub = %s, want %s", got, user)
	}
}

func TestVoiceServiceGenerateJoinToken(t *testing.T) {
	secret := "test-secret"
	domain := "example.com"

	svc := NewVoiceService(secret, "issuer", domain)
	issued := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return issued }

	tokenString, err := svc.GenerateToken("user123", VoiceActionJoin, "AB12CD")
	if err != nil {
		t.Fatalf("generate join token error: %v", err)
	}

	claims := parseVoiceClaims(t, tokenString, secret)
	if got := stringClaim(t, claims, "t"); got != "sip:confctl-g-rps-AB12CD@"+domain {
		t.Fatalf("t = %s", got)
	}
	exp, ok := claims["exp"].(float64)
	if !ok || int64(exp) != issued.Add(voiceTokenTTL).Unix() {
		t.Fatalf("exp = %v", claims["exp"])
	}
}

func TestVoiceServiceRejectsBadRequests(t *testing.T) {
	svc := NewVoiceService("secret", "issuer", "example.com")
	if _, err := svc.GenerateToken("user", "unknown", ""); err == nil {
		t.Fatal("expected error for unsupported action")
	}
	if _, err := svc.GenerateToken("user", VoiceActionJoin, ""); err == nil {
		t.Fatal("expected error for join without room")
	}
	if _, err := svc.GenerateToken("", VoiceActionLogin, ""); err == nil {
		t.Fatal("expected error for empty user")
	}
}

func TestVoiceServiceDisabledWithoutConfig(t *testing.T) {
	svc := NewVoiceService("", "issuer", "example.com")
	if svc.Enabled() {
		t.Fatal("service enabled without secret")
	}
	if _, err := svc.GenerateToken("user", VoiceActionLogin, ""); !errors.Is(err, ErrVoiceDisabled) {
		t.Fatalf("err = %v, want ErrVoiceDisabled", err)
	}

	var nilSvc *VoiceService
	if nilSvc.Enabled() {
		t.Fatal("nil service reported enabled")
	}
}

func parseVoiceClaims(t *testing.T, tokenString, secret string) jwt.MapClaims {
	t.Helper()

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		t.Fatalf("parse token error: %v", err)
	}
	if !token.Valid {
		t.Fatal("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("claims are not map claims")
	}
	return claims
}

func stringClaim(t *testing.T, claims jwt.MapClaims, name string) string {
	t.Helper()
	value, ok := claims[name]
	if !ok {
		t.Fatalf("missing %s claim", name)
	}
	str, ok := value.(string)
	if !ok {
		t.Fatalf("%s claim is not a string", name)
	}
	return str
}
