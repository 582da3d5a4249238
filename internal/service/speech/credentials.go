package speech

import (
	"errors"
	"net/http"
	"strings"

	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
)

// ErrNotConfigured is returned when the app id or access token is missing.
var ErrNotConfigured = errors.New("speech credentials not configured")

func resolveCredentials(cfg *speechmodel.SpeechConfig) (appID, token string, err error) {
	if cfg == nil {
		return "", "", ErrNotConfigured
	}
	appID = strings.TrimSpace(cfg.AppID)
	token = strings.TrimSpace(cfg.AccessToken)
	if appID == "" || token == "" {
		return "", "", ErrNotConfigured
	}
	return appID, token, nil
}

func authHeader(appID, token, resourceID, connectID string) http.Header {
	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)
	return header
}
