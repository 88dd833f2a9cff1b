package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/middleware"
)

// Contact is the slice of the user record notifications need.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// UserClient resolves a user's contact details.
type UserClient interface {
	GetContact(ctx context.Context, userID string) (*Contact, error)
}

// HTTPUserClient implements UserClient against the user service.
type HTTPUserClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *zap.Logger
}

// NewHTTPUserClient creates a new HTTP-based user client.
func NewHTTPUserClient(cfg config.ServiceConfig, logger *zap.Logger) *HTTPUserClient {
	return &HTTPUserClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

// GetContact fetches the user's email and phone.
func (c *HTTPUserClient) GetContact(ctx context.Context, userID string) (*Contact, error) {
	url := fmt.Sprintf("%s/api/v1/users/%s/contact", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if requestID, ok := ctx.Value(middleware.RequestIDKey).(string); ok {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch user contact",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user service returned status %d", resp.StatusCode)
	}

	var contact Contact
	if err := json.NewDecoder(resp.Body).Decode(&contact); err != nil {
		return nil, err
	}

	return &contact, nil
}

// MockUserClient returns fixed contact details for tests.
type MockUserClient struct {
	Contacts map[string]Contact
}

func (m *MockUserClient) GetContact(ctx context.Context, userID string) (*Contact, error) {
	if contact, ok := m.Contacts[userID]; ok {
		return &contact, nil
	}
	return &Contact{}, nil
}
