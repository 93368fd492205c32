package app

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

// Voice token actions.
const (
	VoiceActionLogin = "login"
	VoiceActionJoin  = "join"
)

const voiceTokenTTL = time.Hour

var ErrVoiceDisabled = errors.New("voice chat is not configured")

// VoiceService signs Vivox access tokens so players of a room can share a voice channel.
type VoiceService struct {
	secret string
	issuer string
	domain string
	now    func() time.Time
}

// NewVoiceService returns a token signer. Missing credentials disable it.
func NewVoiceService(secret, issuer, domain string) *VoiceService {
	return &VoiceService{
		secret: secret,
		issuer: issuer,
		domain: domain,
		now:    time.Now,
	}
}

// Enabled reports whether all credentials are present.
func (s *VoiceService) Enabled() bool {
	return s != nil && s.secret != "" && s.issuer != "" && s.domain != ""
}

// ChannelName is the voice channel of a room.
func ChannelName(roomID string) string {
	return "rps-" + roomID
}

// GenerateToken signs a token for user. Join tokens target roomID's channel.
func (s *VoiceService) GenerateToken(user, action, roomID string) (string, error) {
	if !s.Enabled() {
		return "", ErrVoiceDisabled
	}
	if user == "" {
		return "", fmt.Errorf("user is required")
	}

	userURI := s.userURI(user)
	targetURI, err := s.targetURI(action, roomID, userURI)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": user,
		"exp": now.Add(voiceTokenTTL).Unix(),
		"vxa": action,
		"vxi": fmt.Sprintf("%d-%d", now.UnixNano(), rand.Int63()),
		"f":   userURI,
		"t":   targetURI,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

func (s *VoiceService) userURI(user string) string {
	return "sip:." + s.issuer + "." + user + ".@" + s.domain
}

func (s *VoiceService) channelURI(roomID string) string {
	return "sip:confctl-g-" + ChannelName(roomID) + "@" + s.domain
}

func (s *VoiceService) targetURI(action, roomID, userURI string) (string, error) {
	switch action {
	case VoiceActionLogin:
		return userURI, nil
	case VoiceActionJoin:
		if roomID == "" {
			return "", fmt.Errorf("room is required for join tokens")
		}
		return s.channelURI(roomID), nil
	default:
		return "", fmt.Errorf("unsupported voice action: %s", action)
	}
}
