package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	barkAPIURL = "https://api.day.app"
)

// BarkService pushes notifications to one device through Bark
type BarkService struct {
	client  *http.Client
	baseURL string
	key     string
}

// NewBarkService creates a Bark channel for the device key
func NewBarkService(key string) *BarkService {
	return &BarkService{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: barkAPIURL,
		key:     key,
	}
}

// WithBaseURL points the service at another Bark server
func (b *BarkService) WithBaseURL(u string) *BarkService {
	b.baseURL = strings.TrimRight(u, "/")
	return b
}

// Name implements Channel
func (b *BarkService) Name() string { return "bark" }

// SendNotification sends a Bark notification
func (b *BarkService) SendNotification(title, content string) error {
	if !ValidateBarkKey(b.key) {
		return fmt.Errorf("invalid bark key")
	}

	// Build URL: https://api.day.app/{key}/{title}/{content}
	barkURL := fmt.Sprintf("%s/%s/%s/%s", b.baseURL, b.key, url.PathEscape(title), url.PathEscape(content))

	req, err := http.NewRequest(http.MethodGet, barkURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// SendPriceDrop implements Channel
func (b *BarkService) SendPriceDrop(d PriceDrop) error {
	title := "📉 二手估價下降"
	content := fmt.Sprintf("[%s] %s 建議售價從 NT$%d 降至 NT$%d", d.Category, d.Name, d.OldPrice, d.NewPrice)

	return b.SendNotification(title, content)
}

// ValidateBarkKey validates a Bark key
func ValidateBarkKey(key string) bool {
	if key == "" {
		return false
	}

	// Bark keys are alphanumeric and vary in length, but never contain spaces or slashes
	return !strings.ContainsAny(key, " /")
}
