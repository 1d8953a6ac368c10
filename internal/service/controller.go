package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"outreachai/internal/gateway"
	"outreachai/internal/models"
	"outreachai/internal/store"
)

// Session identifies the authenticated user a controller acts for.
// Authentication itself happens elsewhere; the controller only needs the
// resolved identity.
type Session struct {
	UserID string
	Email  string
}

// HandoffPhase marks a campaign awaiting external confirmation from the
// automation engine. The phase is cleared when a subscription push shows the
// store has moved past the requested state.
type HandoffPhase string

const (
	// HandoffDraftGeneration: launch requested, waiting for drafts_ready
	HandoffDraftGeneration HandoffPhase = "draft_generation"
	// HandoffDispatch: send requested, waiting for the processing push
	HandoffDispatch HandoffPhase = "dispatch"
)

// OnlineChecker gates engine operations on the prober's liveness signal
type OnlineChecker interface {
	Online() bool
}

// reconcileQueryLimit bounds the all-status subscription used to confirm
// pending handoffs and compute dashboard stats
const reconcileQueryLimit = 50

// Controller owns the authoritative in-memory view of a user's in-flight
// campaigns and mediates every state transition. It is session-scoped: Start
// binds it to a user and opens its subscriptions, Stop tears everything down
// so nothing fires on stale user context after sign-out.
type Controller struct {
	campaigns store.CampaignStore
	users     store.UserStore
	gateway   gateway.Gateway
	online    OnlineChecker

	mu      sync.Mutex
	session *Session
	// drafts is the editable cache of campaigns currently in drafts_ready.
	// Subscription pushes replace entries wholesale, discarding local
	// edits; local edits mutate whatever is cached. Whichever fires last
	// wins, deliberately.
	drafts  map[string]*models.Campaign
	pending map[string]HandoffPhase
	subs    []store.Subscription

	draftsReadyCh chan []*models.Campaign
	pushDone      chan struct{}
	reconcileDone chan struct{}
}

// NewController creates a lifecycle controller. Call Start before using it.
func NewController(campaigns store.CampaignStore, users store.UserStore, gw gateway.Gateway, online OnlineChecker) *Controller {
	return &Controller{
		campaigns: campaigns,
		users:     users,
		gateway:   gw,
		online:    online,
	}
}

// Start binds the controller to a session and opens its subscriptions:
// one on the user's drafts_ready campaigns feeding the editable cache, one
// across all the user's campaigns confirming pending handoffs.
func (c *Controller) Start(ctx context.Context, session Session) error {
	if session.UserID == "" {
		return &ValidationError{Message: "session user id is required"}
	}

	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return fmt.Errorf("controller already started for user %s", c.session.UserID)
	}
	c.session = &session
	c.drafts = make(map[string]*models.Campaign)
	c.pending = make(map[string]HandoffPhase)
	c.draftsReadyCh = make(chan []*models.Campaign, 1)
	c.pushDone = make(chan struct{})
	c.reconcileDone = make(chan struct{})
	c.mu.Unlock()

	if err := c.users.Ensure(ctx, &models.User{UserID: session.UserID, Email: session.Email}); err != nil {
		log.Printf("Warning: failed to ensure user record for %s: %v", session.UserID, err)
	}

	draftsSub, err := c.campaigns.Subscribe(ctx, store.Query{
		OwnerUserID: session.UserID,
		Status:      models.CampaignStatusDraftsReady,
		Limit:       store.DefaultQueryLimit,
	})
	if err != nil {
		c.resetSession()
		return fmt.Errorf("failed to subscribe to drafts_ready campaigns: %w", err)
	}

	allSub, err := c.campaigns.Subscribe(ctx, store.Query{
		OwnerUserID: session.UserID,
		Limit:       reconcileQueryLimit,
	})
	if err != nil {
		draftsSub.Cancel()
		c.resetSession()
		return fmt.Errorf("failed to subscribe to campaign changes: %w", err)
	}

	c.mu.Lock()
	c.subs = []store.Subscription{draftsSub, allSub}
	c.mu.Unlock()

	go c.consumeDraftsReady(draftsSub)
	go c.consumeReconcile(allSub)

	log.Printf("Controller started for user %s", session.UserID)
	return nil
}

// resetSession clears the state a failed Start left behind, so the controller
// can be started again and Stop will not wait on goroutines that never ran
func (c *Controller) resetSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.drafts = nil
	c.pending = nil
	c.draftsReadyCh = nil
	c.pushDone = nil
	c.reconcileDone = nil
}

// Stop cancels all subscriptions and clears session state. Safe to call once
// per Start; in-flight webhook calls are not interrupted.
func (c *Controller) Stop() {
	c.mu.Lock()
	subs := c.subs
	pushDone := c.pushDone
	reconcileDone := c.reconcileDone
	c.subs = nil
	c.session = nil
	c.drafts = nil
	c.pending = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	if pushDone != nil {
		<-pushDone
	}
	if reconcileDone != nil {
		<-reconcileDone
	}

	log.Println("Controller stopped")
}

// DraftsReady returns the push stream of the user's drafts_ready campaigns.
// Each emission is the full current set, newest first, reflecting any local
// edits; consumers re-render wholesale rather than diffing.
func (c *Controller) DraftsReady() <-chan []*models.Campaign {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftsReadyCh
}

// DraftsReadySnapshot returns the current editable set without waiting for
// a push, for poll-style consumers
func (c *Controller) DraftsReadySnapshot() []*models.Campaign {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drafts == nil {
		return nil
	}
	return c.snapshotLocked()
}

// LaunchCampaign parses the uploaded CSV, persists the initial campaign
// record (status generating, counters zeroed) and asks the engine to
// generate drafts. The returned id is valid as soon as the store write
// commits; when the engine handoff then fails, the id is returned together
// with a TransportError and the record stays in generating.
func (c *Controller) LaunchCampaign(ctx context.Context, name string, sender models.SenderInfo, csvText string) (string, error) {
	session, err := c.currentSession()
	if err != nil {
		return "", err
	}

	if name == "" {
		return "", &ValidationError{Message: "campaign name is required"}
	}

	if !c.online.Online() {
		return "", &EngineOfflineError{Op: "launch campaign"}
	}

	contacts, err := ParseContacts(csvText)
	if err != nil {
		return "", err
	}

	if sender.SenderEmail == "" {
		// No explicit sender on the request: fall back to the identity
		// configured on the user's account.
		if user, getErr := c.users.Get(ctx, session.UserID); getErr == nil {
			sender = user.SenderInfo()
		}
	}

	campaign := &models.Campaign{
		CampaignID:  GenerateCampaignID(),
		OwnerUserID: session.UserID,
		Name:        name,
		Status:      models.CampaignStatusGenerating,
		Contacts:    contacts,
		EmailsTotal: len(contacts),
		Sender:      sender,
		CSVData:     csvText,
	}

	// Store write first: a campaign that was never persisted must not
	// reach the engine.
	if err := c.campaigns.Create(ctx, campaign); err != nil {
		return "", fmt.Errorf("failed to persist campaign: %w", err)
	}

	if err := c.users.RecordLaunch(ctx, session.UserID, len(contacts)); err != nil {
		log.Printf("Warning: failed to update dashboard counters for %s: %v", session.UserID, err)
	}

	c.setPending(campaign.CampaignID, HandoffDraftGeneration)

	handoff := &gateway.CreateDraftRequest{
		CampaignID: campaign.CampaignID,
		UserID:     session.UserID,
		UserEmail:  session.Email,
		CSVData:    csvText,
		Contacts:   contacts,
		CampaignInfo: gateway.CampaignInfo{
			CampaignName: name,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := c.gateway.CreateDraft(ctx, handoff); err != nil {
		// Record is committed and visible as stuck in generating; no
		// automatic rollback.
		return campaign.CampaignID, &TransportError{Op: "launch", Err: err}
	}

	log.Printf("Campaign %s launched with %d contacts", campaign.CampaignID, len(contacts))
	return campaign.CampaignID, nil
}

// EditDraft updates one draft's subject and body in the in-memory cache
// only; nothing is written to the store until SendCampaign commits. Editing
// a campaign or index that no longer exists locally (a concurrent send may
// have removed it) is a silent no-op by design.
func (c *Controller) EditDraft(campaignID string, draftIndex int, subject, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	campaign, ok := c.drafts[campaignID]
	if !ok {
		return
	}
	if draftIndex < 0 || draftIndex >= len(campaign.Drafts) {
		return
	}

	campaign.Drafts[draftIndex].Subject = subject
	campaign.Drafts[draftIndex].Body = body
}

// SendCampaign commits the locally edited drafts, moves the campaign to
// processing and signals the engine to dispatch. If the store commit
// succeeds but the signal fails, the campaign stays in processing with no
// engine notified; this stuck state is surfaced as a TransportError and not
// retried automatically.
func (c *Controller) SendCampaign(ctx context.Context, campaignID string) error {
	if _, err := c.currentSession(); err != nil {
		return err
	}

	if !c.online.Online() {
		return &EngineOfflineError{Op: "send campaign"}
	}

	c.mu.Lock()
	cached, ok := c.drafts[campaignID]
	if !ok {
		c.mu.Unlock()
		return &NotFoundError{Resource: "campaign", ID: campaignID}
	}
	campaign := cached.Clone()
	c.mu.Unlock()

	if !models.CanTransition(campaign.Status, models.CampaignStatusProcessing) {
		return fmt.Errorf("campaign %s cannot be sent from status %s", campaignID, campaign.Status)
	}

	if !campaign.DraftsComplete() {
		// Tolerated integrity condition: the engine delivered fewer
		// drafts than contacts. Send what exists.
		log.Printf("Warning: campaign %s has %d drafts for %d contacts", campaignID, len(campaign.Drafts), len(campaign.Contacts))
	}

	status := models.CampaignStatusProcessing
	drafts := campaign.Drafts
	patch := store.CampaignPatch{
		Status: &status,
		Drafts: &drafts,
	}
	if err := c.campaigns.Update(ctx, campaignID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Resource: "campaign", ID: campaignID}
		}
		return fmt.Errorf("failed to commit drafts: %w", err)
	}

	// Committed: the campaign leaves the editable set regardless of what
	// the engine does next.
	c.mu.Lock()
	if c.drafts != nil {
		delete(c.drafts, campaignID)
	}
	if c.pending != nil {
		c.pending[campaignID] = HandoffDispatch
	}
	c.mu.Unlock()

	signal := &gateway.SendMailRequest{
		CampaignID: campaignID,
		Drafts:     campaign.Drafts,
		Sender:     campaign.Sender,
	}
	if err := c.gateway.SendMail(ctx, signal); err != nil {
		return &TransportError{Op: "send", Err: err}
	}

	log.Printf("Campaign %s handed off for dispatch (%d drafts)", campaignID, len(campaign.Drafts))
	return nil
}

// ReplyCheckResult is the controller-facing reply-detection outcome
type ReplyCheckResult struct {
	RepliedLeads   []string `json:"repliedLeads"`
	UnrepliedLeads []string `json:"unrepliedLeads"`
	TotalChecked   int      `json:"totalChecked"`
	ReplyRate      int      `json:"replyRate"`
	CheckTimestamp string   `json:"checkTimestamp"`
	Note           string   `json:"note,omitempty"`
}

// CheckReplies asks the engine which of the campaign's leads have replied
// since the campaign was created. Pure read-through: no local state changes.
func (c *Controller) CheckReplies(ctx context.Context, campaignID string) (*ReplyCheckResult, error) {
	if _, err := c.currentSession(); err != nil {
		return nil, err
	}

	campaign, err := c.campaigns.Get(ctx, campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "campaign", ID: campaignID}
		}
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}

	leadEmails := make([]string, 0, len(campaign.Contacts))
	for _, contact := range campaign.Contacts {
		leadEmails = append(leadEmails, contact.Email)
	}

	resp, err := c.gateway.CheckReplies(ctx, &gateway.CheckRepliesRequest{
		CampaignID:        campaignID,
		LeadEmails:        leadEmails,
		CampaignStartDate: campaign.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, &TransportError{Op: "check replies", Err: err}
	}

	result := &ReplyCheckResult{
		RepliedLeads:   resp.RepliedLeads,
		UnrepliedLeads: resp.UnrepliedLeads,
		TotalChecked:   resp.TotalLeadsChecked,
		CheckTimestamp: resp.CheckTimestamp,
		Note:           resp.Note,
	}
	if result.TotalChecked > 0 {
		result.ReplyRate = int(float64(len(resp.RepliedLeads))/float64(result.TotalChecked)*100 + 0.5)
	}

	return result, nil
}

// ListCampaigns returns the user's recent campaigns, newest first, with their
// current status and progress counters. Backed by the store, not the drafts
// cache, so terminal campaigns appear too.
func (c *Controller) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	session, err := c.currentSession()
	if err != nil {
		return nil, err
	}

	campaigns, err := c.campaigns.List(ctx, store.Query{
		OwnerUserID: session.UserID,
		Limit:       reconcileQueryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// GetCampaign loads one of the user's campaigns. A campaign belonging to a
// different user reads as not found.
func (c *Controller) GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	session, err := c.currentSession()
	if err != nil {
		return nil, err
	}

	campaign, err := c.campaigns.Get(ctx, campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "campaign", ID: campaignID}
		}
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign.OwnerUserID != session.UserID {
		return nil, &NotFoundError{Resource: "campaign", ID: campaignID}
	}
	return campaign, nil
}

// DashboardStats aggregates the user's recent campaigns for the overview
func (c *Controller) DashboardStats(ctx context.Context) (models.CampaignStats, error) {
	session, err := c.currentSession()
	if err != nil {
		return models.CampaignStats{}, err
	}

	campaigns, err := c.campaigns.List(ctx, store.Query{
		OwnerUserID: session.UserID,
		Limit:       reconcileQueryLimit,
	})
	if err != nil {
		return models.CampaignStats{}, fmt.Errorf("failed to list campaigns: %w", err)
	}

	return models.Aggregate(campaigns), nil
}

// PendingHandoffs returns the campaigns still awaiting external
// confirmation from the engine, keyed by campaign id.
func (c *Controller) PendingHandoffs() map[string]HandoffPhase {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]HandoffPhase, len(c.pending))
	for id, phase := range c.pending {
		out[id] = phase
	}
	return out
}

// consumeDraftsReady feeds subscription pushes into the editable cache.
// Each push replaces the cache wholesale: a push racing a local edit means
// whichever lands last determines in-memory state, never a merge.
func (c *Controller) consumeDraftsReady(sub store.Subscription) {
	defer close(c.pushDone)

	for results := range sub.Updates() {
		c.mu.Lock()
		if c.drafts == nil {
			c.mu.Unlock()
			return
		}

		fresh := make(map[string]*models.Campaign, len(results))
		for _, campaign := range results {
			if !campaign.DraftsComplete() {
				log.Printf("Warning: campaign %s pushed with %d drafts for %d contacts", campaign.CampaignID, len(campaign.Drafts), len(campaign.Contacts))
			}
			fresh[campaign.CampaignID] = campaign.Clone()
			// Only a draft-generation handoff is confirmed by this
			// subscription. A stale drafts_ready emission racing a send
			// commit must not clear the dispatch marker; consumeReconcile
			// owns that.
			if c.pending[campaign.CampaignID] == HandoffDraftGeneration {
				delete(c.pending, campaign.CampaignID)
			}
		}
		c.drafts = fresh

		snapshot := c.snapshotLocked()
		ch := c.draftsReadyCh
		c.mu.Unlock()

		emitLatest(ch, snapshot)
	}
}

// consumeReconcile clears pending handoffs once the store reflects the
// engine's (or our own) committed transition.
func (c *Controller) consumeReconcile(sub store.Subscription) {
	defer close(c.reconcileDone)

	for results := range sub.Updates() {
		c.mu.Lock()
		if c.pending == nil {
			c.mu.Unlock()
			return
		}
		for _, campaign := range results {
			phase, ok := c.pending[campaign.CampaignID]
			if !ok {
				continue
			}
			switch phase {
			case HandoffDraftGeneration:
				if campaign.Status != models.CampaignStatusGenerating {
					delete(c.pending, campaign.CampaignID)
				}
			case HandoffDispatch:
				if campaign.Status == models.CampaignStatusProcessing || campaign.IsTerminal() {
					delete(c.pending, campaign.CampaignID)
				}
			}
		}
		c.mu.Unlock()
	}
}

// snapshotLocked clones the drafts cache, newest first. Caller holds c.mu.
func (c *Controller) snapshotLocked() []*models.Campaign {
	snapshot := make([]*models.Campaign, 0, len(c.drafts))
	for _, campaign := range c.drafts {
		snapshot = append(snapshot, campaign.Clone())
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].CreatedAt.After(snapshot[j].CreatedAt)
	})
	return snapshot
}

func (c *Controller) currentSession() (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{}, fmt.Errorf("controller is not started")
	}
	return *c.session, nil
}

func (c *Controller) setPending(campaignID string, phase HandoffPhase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending[campaignID] = phase
	}
}

// emitLatest pushes a snapshot, replacing any undelivered one
func emitLatest(ch chan []*models.Campaign, snapshot []*models.Campaign) {
	select {
	case ch <- snapshot:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// GenerateCampaignID builds a campaign id: camp_<unixMillis>_<random>.
// The timestamp keeps ids roughly sortable; the suffix keeps them unique.
func GenerateCampaignID() string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("camp_%d_%s", time.Now().UnixMilli(), suffix)
}
