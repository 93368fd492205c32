package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app/onboarding"

	jwt "github.com/form3tech-oss/jwt-go"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// AfterAuthenticateDevice gives newly created accounts a generated nickname.
func AfterAuthenticateDevice(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateDeviceRequest) error {
	if !out.Created {
		return nil
	}

	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		resolvedID, err := extractUserIDFromToken(out.Token)
		if err != nil {
			logger.Error("AfterAuthenticateDevice: Failed to extract user ID from token: %v", err)
			return err
		}
		userID = resolvedID
	}

	logger.Info("Onboarding new user %s", userID)

	service := onboarding.NewService(NewNakamaAccountAdapter(nk), nil)
	result, err := service.OnboardNewUser(ctx, userID)
	if err != nil {
		logger.Error("AfterAuthenticateDevice: Onboarding failed for user %s: %v", userID, err)
		return err
	}
	if result.ProfileUpdateErr != nil {
		logger.Warn("AfterAuthenticateDevice: Failed to update profile for user %s: %v", userID, result.ProfileUpdateErr)
	}
	return nil
}

// extractUserIDFromToken reads the uid claim of a session token Nakama just
// issued. The signature is not checked.
func extractUserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	uid, ok := claims["uid"].(string)
	if !ok || uid == "" {
		return "", fmt.Errorf("token claims missing uid")
	}
	return uid, nil
}

// sessionEnd removes a closed session from its room. Nakama clears the
// session's stream presences on its own.
func (m *Module) sessionEnd(ctx context.Context, logger runtime.Logger, evt *api.Event) {
	sessionID, _ := ctx.Value(runtime.RUNTIME_CTX_SESSION_ID).(string)
	if sessionID == "" {
		sessionID = evt.GetProperties()["session_id"]
	}
	if sessionID == "" {
		return
	}

	m.coordinator.Disconnect(ctx, sessionID)
	m.gateway.Forget(sessionID)
}

// RegisterHooks registers the auth hook and the session lifecycle handler.
func (m *Module) RegisterHooks(initializer runtime.Initializer) error {
	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}
	return initializer.RegisterEventSessionEnd(m.sessionEnd)
}
