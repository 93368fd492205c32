package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/domain"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/ports"
)

const usernameSuffixLength = 8

// Result captures non-fatal onboarding outcomes.
type Result struct {
	// DisplayName is the generated nickname assigned to the account.
	DisplayName string
	// ProfileUpdateErr is set when the profile update failed but onboarding continued.
	ProfileUpdateErr error
}

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService constructs an onboarding service.
// accounts must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		rng:      rng,
	}
}

// OnboardNewUser gives a newly created account a friendly nickname, used as
// the default display name when the player opens or joins a room.
// Profile update failures are reported in Result and do not fail onboarding.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (Result, error) {
	if s.accounts == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}
	if userID == "" {
		return Result{}, fmt.Errorf("user id is required")
	}

	s.mu.Lock()
	displayName := domain.RandomNickname(s.rng)
	s.mu.Unlock()

	result := Result{DisplayName: displayName}
	if err := s.accounts.UpdateProfile(ctx, userID, usernameFor(displayName, userID), displayName); err != nil {
		result.ProfileUpdateErr = err
	}
	return result, nil
}

// usernameFor derives a unique username; nicknames alone collide.
func usernameFor(displayName, userID string) string {
	suffix := strings.ReplaceAll(userID, "-", "")
	if len(suffix) > usernameSuffixLength {
		suffix = suffix[:usernameSuffixLength]
	}
	return strings.ToLower(displayName) + "_" + suffix
}
