package videosdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/adivish/quickmeet/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTTL is the lifetime of a minted provider token. Tokens are never
	// cached; a fresh one is requested per call attempt.
	TokenTTL = 10 * time.Minute

	// Rooms auto-close 10 minutes after the session ends.
	roomAutoCloseMinutes = 10
)

var (
	ErrNotConfigured = errors.New("missing VideoSDK configuration")
	ErrRoomCreation  = errors.New("failed to create room")
)

// Client talks to the hosted video provider: it mints access tokens, asks
// for room allocation, and builds the prebuilt-embed URL the browser loads.
type Client struct {
	apiKey   string
	secret   string
	apiURL   string
	embedURL string
	http     *http.Client
}

func NewClient(apiKey, secret, apiURL, embedURL string) *Client {
	return &Client{
		apiKey:   apiKey,
		secret:   secret,
		apiURL:   apiURL,
		embedURL: embedURL,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// MintToken signs a short-lived HS256 credential with the fixed permission
// scope the provider expects. Returns ErrNotConfigured when the API key or
// secret is absent.
func (c *Client) MintToken() (string, error) {
	if c.apiKey == "" || c.secret == "" {
		return "", ErrNotConfigured
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"apikey":      c.apiKey,
		"permissions": []string{"allow_join", "allow_mod"},
		"version":     2,
		"iat":         now.Unix(),
		"exp":         now.Add(TokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

type createRoomRequest struct {
	CustomRoomID    string          `json:"customRoomId,omitempty"`
	AutoCloseConfig autoCloseConfig `json:"autoCloseConfig"`
}

type autoCloseConfig struct {
	Type     string `json:"type"`
	Duration int    `json:"duration"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// CreateRoom asks the provider to allocate a room, authorized with the given
// token. A rejection or a response without a room id is ErrRoomCreation.
func (c *Client) CreateRoom(ctx context.Context, token string) (*models.Room, error) {
	body, err := json.Marshal(createRoomRequest{
		AutoCloseConfig: autoCloseConfig{
			Type:     "session-end-and-deactivate",
			Duration: roomAutoCloseMinutes,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v2/rooms", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build room request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoomCreation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Message == "" {
			return nil, fmt.Errorf("%w: status %d", ErrRoomCreation, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrRoomCreation, errResp.Message)
	}

	var room models.Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoomCreation, err)
	}
	if room.RoomID == "" {
		return nil, fmt.Errorf("%w: response missing room id", ErrRoomCreation)
	}

	return &room, nil
}

// EmbedURL builds the prebuilt iframe URL for one participant. The redirect
// target brings the user back to the dashboard when they leave the call.
func (c *Client) EmbedURL(name, meetingID, token, redirectURL string) string {
	params := url.Values{}
	params.Set("name", name)
	params.Set("meetingId", meetingID)
	params.Set("token", token)
	params.Set("micEnabled", "true")
	params.Set("webcamEnabled", "true")
	params.Set("participantCanToggleSelfWebcam", "true")
	params.Set("participantCanToggleSelfMic", "true")
	params.Set("chatEnabled", "true")
	params.Set("screenShareEnabled", "true")
	params.Set("joinWithoutUserInteraction", "true")
	params.Set("redirectOnLeave", redirectURL)
	return c.embedURL + "?" + params.Encode()
}
