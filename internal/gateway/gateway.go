package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"outreachai/internal/models"
)

// Endpoints holds the automation engine's webhook URLs
type Endpoints struct {
	Ping         string
	CreateDraft  string
	SendMail     string
	CheckReplies string
}

// Gateway hands campaigns off to the automation engine over webhooks
type Gateway interface {
	// Ping checks liveness; any HTTP response counts as alive
	Ping(ctx context.Context) error
	// CreateDraft asks the engine to generate drafts for a new campaign
	CreateDraft(ctx context.Context, req *CreateDraftRequest) error
	// SendMail tells the engine to dispatch the campaign's drafts
	SendMail(ctx context.Context, req *SendMailRequest) error
	// CheckReplies queries the engine's reply detection for a campaign
	CheckReplies(ctx context.Context, req *CheckRepliesRequest) (*CheckRepliesResponse, error)
}

// CampaignInfo is the launch metadata forwarded to the engine
type CampaignInfo struct {
	CampaignName string `json:"campaignName"`
	Timestamp    string `json:"timestamp"`
}

// CreateDraftRequest is the draft-generation handoff payload
type CreateDraftRequest struct {
	CampaignID   string           `json:"campaignId"`
	UserID       string           `json:"userId"`
	UserEmail    string           `json:"userEmail"`
	CSVData      string           `json:"csvData"`
	Contacts     []models.Contact `json:"contacts"`
	CampaignInfo CampaignInfo     `json:"campaignInfo"`
}

// SendMailRequest is the dispatch payload
type SendMailRequest struct {
	CampaignID string            `json:"campaignId"`
	Drafts     []models.Draft    `json:"drafts"`
	Sender     models.SenderInfo `json:"sender"`
}

// CheckRepliesRequest is the reply-detection query payload
type CheckRepliesRequest struct {
	CampaignID        string   `json:"campaignId"`
	LeadEmails        []string `json:"leadEmails"`
	CampaignStartDate string   `json:"campaignStartDate"`
}

// CheckRepliesResponse is the engine's reply-detection result
type CheckRepliesResponse struct {
	RepliedLeads      []string `json:"repliedLeads"`
	UnrepliedLeads    []string `json:"unrepliedLeads"`
	TotalLeadsChecked int      `json:"totalLeadsChecked"`
	CheckTimestamp    string   `json:"checkTimestamp"`
	Note              string   `json:"note,omitempty"`
}

// Timeout policy: pings must answer fast, launch and send operations may
// take the engine a while (template generation, SMTP handshakes).
const (
	DefaultPingTimeout      = 3 * time.Second
	DefaultOperationTimeout = 60 * time.Second
)

// WebhookGateway is the HTTP implementation of Gateway
type WebhookGateway struct {
	endpoints        Endpoints
	client           *http.Client
	pingTimeout      time.Duration
	operationTimeout time.Duration
}

// NewWebhookGateway creates a gateway for the given engine endpoints
func NewWebhookGateway(endpoints Endpoints) *WebhookGateway {
	return &WebhookGateway{
		endpoints:        endpoints,
		client:           &http.Client{},
		pingTimeout:      DefaultPingTimeout,
		operationTimeout: DefaultOperationTimeout,
	}
}

// WithTimeouts overrides the default timeout policy
func (g *WebhookGateway) WithTimeouts(ping, operation time.Duration) *WebhookGateway {
	g.pingTimeout = ping
	g.operationTimeout = operation
	return g
}

// Ping checks engine liveness. A webhook that answers at all, even with an
// error status, is considered alive; only transport failures count as down.
func (g *WebhookGateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.pingTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]bool{"ping": true})
	if err != nil {
		return fmt.Errorf("failed to marshal ping: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoints.Ping, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return nil
}

// CreateDraft asks the engine to generate drafts for a new campaign
func (g *WebhookGateway) CreateDraft(ctx context.Context, req *CreateDraftRequest) error {
	_, err := g.notify(ctx, g.endpoints.CreateDraft, req, g.operationTimeout)
	return err
}

// SendMail tells the engine to dispatch the campaign's drafts
func (g *WebhookGateway) SendMail(ctx context.Context, req *SendMailRequest) error {
	_, err := g.notify(ctx, g.endpoints.SendMail, req, g.operationTimeout)
	return err
}

// CheckReplies queries the engine's reply detection for a campaign
func (g *WebhookGateway) CheckReplies(ctx context.Context, req *CheckRepliesRequest) (*CheckRepliesResponse, error) {
	body, err := g.notify(ctx, g.endpoints.CheckReplies, req, g.operationTimeout)
	if err != nil {
		return nil, err
	}

	result := &CheckRepliesResponse{}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("failed to parse check-replies response: %w", err)
	}
	return result, nil
}

// notify issues a JSON POST and returns the response body on a 2xx status
func (g *WebhookGateway) notify(ctx context.Context, endpoint string, payload interface{}, timeout time.Duration) ([]byte, error) {
	if endpoint == "" {
		return nil, errors.New("webhook endpoint is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return respBody, nil
}
