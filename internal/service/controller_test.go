package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreachai/internal/gateway"
	"outreachai/internal/models"
	"outreachai/internal/store"
)

const testCSV = "name,email\nAda Lovelace,ada@example.com\nGrace Hopper,grace@example.com"

// fakeGateway records engine handoffs and returns configurable results
type fakeGateway struct {
	mu             sync.Mutex
	createDraftErr error
	sendMailErr    error
	repliesResp    *gateway.CheckRepliesResponse
	repliesErr     error

	createDraftCalls []*gateway.CreateDraftRequest
	sendMailCalls    []*gateway.SendMailRequest
	repliesCalls     []*gateway.CheckRepliesRequest
}

func (f *fakeGateway) Ping(ctx context.Context) error { return nil }

func (f *fakeGateway) CreateDraft(ctx context.Context, req *gateway.CreateDraftRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createDraftCalls = append(f.createDraftCalls, req)
	return f.createDraftErr
}

func (f *fakeGateway) SendMail(ctx context.Context, req *gateway.SendMailRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendMailCalls = append(f.sendMailCalls, req)
	return f.sendMailErr
}

func (f *fakeGateway) CheckReplies(ctx context.Context, req *gateway.CheckRepliesRequest) (*gateway.CheckRepliesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repliesCalls = append(f.repliesCalls, req)
	if f.repliesErr != nil {
		return nil, f.repliesErr
	}
	return f.repliesResp, nil
}

func (f *fakeGateway) lastCreateDraft() *gateway.CreateDraftRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createDraftCalls) == 0 {
		return nil
	}
	return f.createDraftCalls[len(f.createDraftCalls)-1]
}

func (f *fakeGateway) sendMailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sendMailCalls)
}

// stubOnline is a fixed-answer OnlineChecker
type stubOnline struct{ online bool }

func (s *stubOnline) Online() bool { return s.online }

type controllerFixture struct {
	controller *Controller
	campaigns  *store.MemoryCampaignStore
	users      *store.MemoryUserStore
	gateway    *fakeGateway
	online     *stubOnline
}

// setupController starts a controller over in-memory stores for user_1
func setupController(t *testing.T) *controllerFixture {
	t.Helper()

	f := &controllerFixture{
		campaigns: store.NewMemoryCampaignStore(nil),
		users:     store.NewMemoryUserStore(),
		gateway:   &fakeGateway{},
		online:    &stubOnline{online: true},
	}
	f.controller = NewController(f.campaigns, f.users, f.gateway, f.online)

	err := f.controller.Start(context.Background(), Session{UserID: "user_1", Email: "u1@example.com"})
	require.NoError(t, err)
	t.Cleanup(f.controller.Stop)

	return f
}

// pushDrafts simulates the engine's drafts callback landing in the store
func pushDrafts(t *testing.T, f *controllerFixture, campaignID string, drafts []models.Draft) {
	t.Helper()

	status := models.CampaignStatusDraftsReady
	err := f.campaigns.Update(context.Background(), campaignID, store.CampaignPatch{
		Status: &status,
		Drafts: &drafts,
	})
	require.NoError(t, err)
}

// waitForDraft waits until the editable cache holds the campaign
func waitForDraft(t *testing.T, f *controllerFixture, campaignID string) {
	t.Helper()

	require.Eventually(t, func() bool {
		return findDraft(f, campaignID) != nil
	}, 2*time.Second, 10*time.Millisecond, "campaign %s never reached the editable cache", campaignID)
}

// findDraft returns the cached campaign, or nil
func findDraft(f *controllerFixture, campaignID string) *models.Campaign {
	for _, c := range f.controller.DraftsReadySnapshot() {
		if c.CampaignID == campaignID {
			return c
		}
	}
	return nil
}

// settle drains the change feed by pushing a marker campaign through it and
// waiting for the marker to surface. Changes are applied in order, so once
// the marker is visible every earlier change has been applied too; a local
// edit made after settle cannot be wiped by a stale re-evaluation.
func settle(t *testing.T, f *controllerFixture) {
	t.Helper()

	marker := &models.Campaign{
		CampaignID:  "camp_marker_" + time.Now().Format("150405.000000"),
		OwnerUserID: "user_1",
		Name:        "marker",
		Status:      models.CampaignStatusDraftsReady,
		Contacts:    []models.Contact{{Name: "M", Email: "m@example.com"}},
		Drafts:      []models.Draft{{Subject: "m"}},
		EmailsTotal: 1,
	}
	require.NoError(t, f.campaigns.Create(context.Background(), marker))
	waitForDraft(t, f, marker.CampaignID)
}

// ==================== LaunchCampaign Tests ====================

// TestLaunchCampaign_Success persists the record and hands off to the engine
func TestLaunchCampaign_Success(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{
		SenderName:  "Sam Seller",
		SenderEmail: "sam@example.com",
	}, testCSV)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(campaignID, "camp_"))

	// Record committed with zeroed counters
	stored, err := f.campaigns.Get(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusGenerating, stored.Status)
	assert.Equal(t, "Q3 Outreach", stored.Name)
	assert.Equal(t, "user_1", stored.OwnerUserID)
	assert.Len(t, stored.Contacts, 2)
	assert.Equal(t, 2, stored.EmailsTotal)
	assert.Equal(t, 0, stored.EmailsSent)
	assert.Equal(t, "sam@example.com", stored.Sender.SenderEmail)
	assert.Equal(t, testCSV, stored.CSVData)

	// Engine received the full handoff payload
	handoff := f.gateway.lastCreateDraft()
	require.NotNil(t, handoff)
	assert.Equal(t, campaignID, handoff.CampaignID)
	assert.Equal(t, "user_1", handoff.UserID)
	assert.Equal(t, "u1@example.com", handoff.UserEmail)
	assert.Equal(t, testCSV, handoff.CSVData)
	assert.Len(t, handoff.Contacts, 2)
	assert.Equal(t, "Q3 Outreach", handoff.CampaignInfo.CampaignName)

	// Dashboard counters bumped
	user, err := f.users.Get(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ActiveCampaigns)
	assert.Equal(t, 2, user.TotalLeads)

	// Handoff tracked until the engine confirms
	pending := f.controller.PendingHandoffs()
	assert.Equal(t, HandoffDraftGeneration, pending[campaignID])
}

// TestLaunchCampaign_EmptyName rejects before any side effect
func TestLaunchCampaign_EmptyName(t *testing.T) {
	f := setupController(t)

	_, err := f.controller.LaunchCampaign(context.Background(), "", models.SenderInfo{}, testCSV)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Nil(t, f.gateway.lastCreateDraft())
}

// TestLaunchCampaign_InvalidCSV rejects before the store write
func TestLaunchCampaign_InvalidCSV(t *testing.T) {
	f := setupController(t)

	_, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, "name,company\nAda,Engines")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	campaigns, err := f.campaigns.List(context.Background(), store.Query{OwnerUserID: "user_1"})
	require.NoError(t, err)
	assert.Empty(t, campaigns)
	assert.Nil(t, f.gateway.lastCreateDraft())
}

// TestLaunchCampaign_EngineOffline fails fast without touching the store
func TestLaunchCampaign_EngineOffline(t *testing.T) {
	f := setupController(t)
	f.online.online = false

	_, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)

	var offlineErr *EngineOfflineError
	require.ErrorAs(t, err, &offlineErr)

	campaigns, err := f.campaigns.List(context.Background(), store.Query{OwnerUserID: "user_1"})
	require.NoError(t, err)
	assert.Empty(t, campaigns)
	assert.Nil(t, f.gateway.lastCreateDraft())
}

// TestLaunchCampaign_TransportFailure keeps the committed record in generating
// and still returns its id so the caller can surface the stuck state
func TestLaunchCampaign_TransportFailure(t *testing.T) {
	f := setupController(t)
	f.gateway.createDraftErr = errors.New("connection refused")

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.NotEmpty(t, campaignID)

	stored, getErr := f.campaigns.Get(context.Background(), campaignID)
	require.NoError(t, getErr)
	assert.Equal(t, models.CampaignStatusGenerating, stored.Status)
}

// ==================== Drafts cache / EditDraft Tests ====================

// TestDraftsReadyPush_PopulatesCache feeds an engine push into the editable set
func TestDraftsReadyPush_PopulatesCache(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)

	pushDrafts(t, f, campaignID, []models.Draft{
		{RecipientEmail: "ada@example.com", Subject: "Hi Ada", Body: "..."},
		{RecipientEmail: "grace@example.com", Subject: "Hi Grace", Body: "..."},
	})
	waitForDraft(t, f, campaignID)

	snapshot := f.controller.DraftsReadySnapshot()
	require.Len(t, snapshot, 1)
	assert.Len(t, snapshot[0].Drafts, 2)

	// The confirmed handoff is no longer pending
	require.Eventually(t, func() bool {
		_, ok := f.controller.PendingHandoffs()[campaignID]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

// TestDraftsReadyPush_KeepsDispatchMarker verifies that a drafts_ready
// emission only confirms draft-generation handoffs: a dispatch marker set by
// a send racing a stale re-evaluation must survive until the reconcile
// subscription sees the committed transition
func TestDraftsReadyPush_KeepsDispatchMarker(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)
	pushDrafts(t, f, campaignID, []models.Draft{{Subject: "a"}, {Subject: "b"}})
	waitForDraft(t, f, campaignID)
	settle(t, f)

	// A send has just marked the campaign for dispatch while the store still
	// reads drafts_ready
	f.controller.mu.Lock()
	f.controller.pending[campaignID] = HandoffDispatch
	f.controller.mu.Unlock()

	// A stale drafts_ready emission arrives for the same campaign
	pushDrafts(t, f, campaignID, []models.Draft{{Subject: "a2"}, {Subject: "b2"}})
	settle(t, f)

	assert.Equal(t, HandoffDispatch, f.controller.PendingHandoffs()[campaignID])
}

// TestEditDraft_UpdatesCache edits land in memory, not in the store
func TestEditDraft_UpdatesCache(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)
	pushDrafts(t, f, campaignID, []models.Draft{
		{RecipientEmail: "ada@example.com", Subject: "Hi Ada", Body: "original"},
		{RecipientEmail: "grace@example.com", Subject: "Hi Grace", Body: "original"},
	})
	waitForDraft(t, f, campaignID)
	settle(t, f)

	f.controller.EditDraft(campaignID, 0, "Edited subject", "edited body")

	cached := findDraft(f, campaignID)
	require.NotNil(t, cached)
	assert.Equal(t, "Edited subject", cached.Drafts[0].Subject)
	assert.Equal(t, "edited body", cached.Drafts[0].Body)
	assert.Equal(t, "Hi Grace", cached.Drafts[1].Subject)

	// Store still holds the engine's version
	stored, err := f.campaigns.Get(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada", stored.Drafts[0].Subject)
}

// TestEditDraft_OverwrittenByPush verifies last-callback-wins: a later push
// replaces the cache wholesale, discarding the local edit
func TestEditDraft_OverwrittenByPush(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)
	pushDrafts(t, f, campaignID, []models.Draft{
		{RecipientEmail: "ada@example.com", Subject: "Hi Ada", Body: "v1"},
		{RecipientEmail: "grace@example.com", Subject: "Hi Grace", Body: "v1"},
	})
	waitForDraft(t, f, campaignID)
	settle(t, f)

	f.controller.EditDraft(campaignID, 0, "My edit", "my body")

	// Engine redelivers; the push wins
	pushDrafts(t, f, campaignID, []models.Draft{
		{RecipientEmail: "ada@example.com", Subject: "Hi Ada", Body: "v2"},
		{RecipientEmail: "grace@example.com", Subject: "Hi Grace", Body: "v2"},
	})

	require.Eventually(t, func() bool {
		cached := findDraft(f, campaignID)
		return cached != nil && cached.Drafts[0].Body == "v2"
	}, 2*time.Second, 10*time.Millisecond)

	cached := findDraft(f, campaignID)
	assert.Equal(t, "Hi Ada", cached.Drafts[0].Subject)
}

// TestEditDraft_UnknownCampaign is a silent no-op
func TestEditDraft_UnknownCampaign(t *testing.T) {
	f := setupController(t)

	f.controller.EditDraft("camp_missing", 0, "subject", "body")
	assert.Empty(t, f.controller.DraftsReadySnapshot())
}

// TestEditDraft_IndexOutOfRange is a silent no-op
func TestEditDraft_IndexOutOfRange(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)
	pushDrafts(t, f, campaignID, []models.Draft{
		{Subject: "Hi Ada"}, {Subject: "Hi Grace"},
	})
	waitForDraft(t, f, campaignID)
	settle(t, f)

	f.controller.EditDraft(campaignID, 5, "subject", "body")
	f.controller.EditDraft(campaignID, -1, "subject", "body")

	cached := findDraft(f, campaignID)
	require.NotNil(t, cached)
	assert.Equal(t, "Hi Ada", cached.Drafts[0].Subject)
}

// TestLaunchCampaign_SenderFromProfile falls back to the account's configured
// sender identity when the request carries none
func TestLaunchCampaign_SenderFromProfile(t *testing.T) {
	campaigns := store.NewMemoryCampaignStore(nil)
	users := store.NewMemoryUserStore()
	require.NoError(t, users.Ensure(context.Background(), &models.User{
		UserID: "user_1",
		Email:  "u1@example.com",
		EmailSettings: models.EmailSettings{
			SenderName:  "Studio Outreach",
			SenderEmail: "studio@example.com",
		},
	}))

	controller := NewController(campaigns, users, &fakeGateway{}, &stubOnline{online: true})
	require.NoError(t, controller.Start(context.Background(), Session{UserID: "user_1", Email: "u1@example.com"}))
	t.Cleanup(controller.Stop)

	campaignID, err := controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)

	stored, err := campaigns.Get(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, "studio@example.com", stored.Sender.SenderEmail)
	assert.Equal(t, "Studio Outreach", stored.Sender.SenderName)
}

// TestLaunchCampaign_SenderDefaultsToAccountEmail uses the account email when
// no sender settings were ever configured
func TestLaunchCampaign_SenderDefaultsToAccountEmail(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)

	stored, err := f.campaigns.Get(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", stored.Sender.SenderEmail)
}

// ==================== ListCampaigns / GetCampaign Tests ====================

// TestListCampaigns returns the user's campaigns newest first, other owners
// excluded
func TestListCampaigns(t *testing.T) {
	f := setupController(t)

	first, err := f.controller.LaunchCampaign(context.Background(), "First", models.SenderInfo{}, testCSV)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := f.controller.LaunchCampaign(context.Background(), "Second", models.SenderInfo{}, testCSV)
	require.NoError(t, err)

	// Another user's campaign must stay invisible
	require.NoError(t, f.campaigns.Create(context.Background(), &models.Campaign{
		CampaignID:  "camp_other",
		OwnerUserID: "user_2",
		Name:        "Theirs",
		Status:      models.CampaignStatusGenerating,
		Contacts:    []models.Contact{{Name: "X", Email: "x@example.com"}},
		EmailsTotal: 1,
	}))

	campaigns, err := f.controller.ListCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, second, campaigns[0].CampaignID)
	assert.Equal(t, first, campaigns[1].CampaignID)
	assert.Equal(t, models.CampaignStatusGenerating, campaigns[0].Status)
}

// TestGetCampaign loads the full record including counters
func TestGetCampaign(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)

	campaign, err := f.controller.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, "Q3 Outreach", campaign.Name)
	assert.Equal(t, 2, campaign.EmailsTotal)
	assert.Equal(t, 0, campaign.EmailsSent)
}

// TestGetCampaign_OtherOwner reads as not found
func TestGetCampaign_OtherOwner(t *testing.T) {
	f := setupController(t)

	require.NoError(t, f.campaigns.Create(context.Background(), &models.Campaign{
		CampaignID:  "camp_other",
		OwnerUserID: "user_2",
		Name:        "Theirs",
		Status:      models.CampaignStatusGenerating,
		Contacts:    []models.Contact{{Name: "X", Email: "x@example.com"}},
		EmailsTotal: 1,
	}))

	_, err := f.controller.GetCampaign(context.Background(), "camp_other")

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

// TestGetCampaign_Unknown returns NotFoundError
func TestGetCampaign_Unknown(t *testing.T) {
	f := setupController(t)

	_, err := f.controller.GetCampaign(context.Background(), "camp_missing")

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

// ==================== SendCampaign Tests ====================

// TestSendCampaign_Success commits edits, signals the engine and removes the
// campaign from the editable set
func TestSendCampaign_Success(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{SenderEmail: "sam@example.com"}, testCSV)
	require.NoError(t, err)
	pushDrafts(t, f, campaignID, []models.Draft{
		{RecipientEmail: "ada@example.com", Subject: "Hi Ada"},
		{RecipientEmail: "grace@example.com", Subject: "Hi Grace"},
	})
	waitForDraft(t, f, campaignID)
	settle(t, f)

	f.controller.EditDraft(campaignID, 0, "Final subject", "final body")

	require.NoError(t, f.controller.SendCampaign(context.Background(), campaignID))

	// Edited drafts are what got committed
	stored, err := f.campaigns.Get(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusProcessing, stored.Status)
	assert.Equal(t, "Final subject", stored.Drafts[0].Subject)

	// Engine got the dispatch signal with the edited drafts
	require.Equal(t, 1, f.gateway.sendMailCount())
	signal := f.gateway.sendMailCalls[0]
	assert.Equal(t, campaignID, signal.CampaignID)
	assert.Equal(t, "Final subject", signal.Drafts[0].Subject)
	assert.Equal(t, "sam@example.com", signal.Sender.SenderEmail)

	// Gone from the editable set; a second send cannot find it
	assert.Nil(t, findDraft(f, campaignID))
	var notFoundErr *NotFoundError
	require.ErrorAs(t, f.controller.SendCampaign(context.Background(), campaignID), &notFoundErr)
}

// TestSendCampaign_Unknown returns NotFoundError
func TestSendCampaign_Unknown(t *testing.T) {
	f := setupController(t)

	var notFoundErr *NotFoundError
	require.ErrorAs(t, f.controller.SendCampaign(context.Background(), "camp_missing"), &notFoundErr)
}

// TestSendCampaign_EngineOffline fails fast before the store commit
func TestSendCampaign_EngineOffline(t *testing.T) {
	f := setupController(t)

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)
	pushDrafts(t, f, campaignID, []models.Draft{{Subject: "a"}, {Subject: "b"}})
	waitForDraft(t, f, campaignID)

	f.online.online = false

	var offlineErr *EngineOfflineError
	require.ErrorAs(t, f.controller.SendCampaign(context.Background(), campaignID), &offlineErr)

	// Still drafts_ready and still editable
	stored, err := f.campaigns.Get(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDraftsReady, stored.Status)
	assert.NotNil(t, findDraft(f, campaignID))
}

// TestSendCampaign_TransportFailure leaves the campaign committed to
// processing with no engine notified
func TestSendCampaign_TransportFailure(t *testing.T) {
	f := setupController(t)
	f.gateway.sendMailErr = errors.New("connection reset")

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)
	pushDrafts(t, f, campaignID, []models.Draft{{Subject: "a"}, {Subject: "b"}})
	waitForDraft(t, f, campaignID)

	var transportErr *TransportError
	require.ErrorAs(t, f.controller.SendCampaign(context.Background(), campaignID), &transportErr)

	stored, err := f.campaigns.Get(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusProcessing, stored.Status)
}

// ==================== CheckReplies Tests ====================

// TestCheckReplies computes the rounded reply rate from the engine's answer
func TestCheckReplies(t *testing.T) {
	f := setupController(t)
	f.gateway.repliesResp = &gateway.CheckRepliesResponse{
		RepliedLeads:      []string{"ada@example.com"},
		UnrepliedLeads:    []string{"grace@example.com", "alan@example.com"},
		TotalLeadsChecked: 3,
		CheckTimestamp:    "2026-08-31T12:00:00Z",
	}

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)

	result, err := f.controller.CheckReplies(context.Background(), campaignID)

	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, result.RepliedLeads)
	assert.Equal(t, 3, result.TotalChecked)
	assert.Equal(t, 33, result.ReplyRate)

	// The query carried the campaign's lead emails
	require.Len(t, f.gateway.repliesCalls, 1)
	assert.Equal(t, []string{"ada@example.com", "grace@example.com"}, f.gateway.repliesCalls[0].LeadEmails)
}

// TestCheckReplies_ZeroChecked reports a zero rate without dividing
func TestCheckReplies_ZeroChecked(t *testing.T) {
	f := setupController(t)
	f.gateway.repliesResp = &gateway.CheckRepliesResponse{
		TotalLeadsChecked: 0,
		Note:              "mailbox not yet indexed",
	}

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)

	result, err := f.controller.CheckReplies(context.Background(), campaignID)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ReplyRate)
	assert.Equal(t, "mailbox not yet indexed", result.Note)
}

// TestCheckReplies_UnknownCampaign returns NotFoundError
func TestCheckReplies_UnknownCampaign(t *testing.T) {
	f := setupController(t)

	_, err := f.controller.CheckReplies(context.Background(), "camp_missing")

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

// ==================== Stats / lifecycle Tests ====================

// TestDashboardStats aggregates the user's campaigns
func TestDashboardStats(t *testing.T) {
	f := setupController(t)

	_, err := f.controller.LaunchCampaign(context.Background(), "First", models.SenderInfo{}, testCSV)
	require.NoError(t, err)
	_, err = f.controller.LaunchCampaign(context.Background(), "Second", models.SenderInfo{}, "name,email\nAlan,alan@example.com")
	require.NoError(t, err)

	stats, err := f.controller.DashboardStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 3, stats.TotalLeads)
	assert.Equal(t, 3, stats.EmailsTotal)
}

// TestControllerStop rejects operations after the session ends
func TestControllerStop(t *testing.T) {
	campaigns := store.NewMemoryCampaignStore(nil)
	users := store.NewMemoryUserStore()
	gw := &fakeGateway{}
	controller := NewController(campaigns, users, gw, &stubOnline{online: true})

	require.NoError(t, controller.Start(context.Background(), Session{UserID: "user_1"}))
	controller.Stop()

	_, err := controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	assert.Error(t, err)
	assert.Nil(t, gw.lastCreateDraft())
}

// flakySubscribeStore fails the nth Subscribe call and delegates the rest
type flakySubscribeStore struct {
	*store.MemoryCampaignStore
	mu       sync.Mutex
	calls    int
	failCall int
}

func (s *flakySubscribeStore) Subscribe(ctx context.Context, q store.Query) (store.Subscription, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls == s.failCall
	s.mu.Unlock()

	if fail {
		return nil, errors.New("feed unavailable")
	}
	return s.MemoryCampaignStore.Subscribe(ctx, q)
}

// TestControllerStart_SubscribeFailure leaves the controller restartable: a
// failed Start must not hold the session, and Stop must not hang waiting on
// consumers that never ran
func TestControllerStart_SubscribeFailure(t *testing.T) {
	campaigns := &flakySubscribeStore{
		MemoryCampaignStore: store.NewMemoryCampaignStore(nil),
		failCall:            2,
	}
	controller := NewController(campaigns, store.NewMemoryUserStore(), &fakeGateway{}, &stubOnline{online: true})

	err := controller.Start(context.Background(), Session{UserID: "user_1"})
	require.Error(t, err)

	// Stop after the failed Start returns immediately
	controller.Stop()

	// And a fresh Start succeeds rather than reporting an active session
	require.NoError(t, controller.Start(context.Background(), Session{UserID: "user_1"}))
	t.Cleanup(controller.Stop)
}

// TestControllerStart_RequiresUser rejects an anonymous session
func TestControllerStart_RequiresUser(t *testing.T) {
	controller := NewController(store.NewMemoryCampaignStore(nil), store.NewMemoryUserStore(), &fakeGateway{}, &stubOnline{online: true})

	err := controller.Start(context.Background(), Session{})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

// TestDraftsReadyChannel_EmitsSnapshots verifies the push stream carries the
// full editable set
func TestDraftsReadyChannel_EmitsSnapshots(t *testing.T) {
	f := setupController(t)
	ch := f.controller.DraftsReady()

	campaignID, err := f.controller.LaunchCampaign(context.Background(), "Q3 Outreach", models.SenderInfo{}, testCSV)
	require.NoError(t, err)
	pushDrafts(t, f, campaignID, []models.Draft{{Subject: "a"}, {Subject: "b"}})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snapshot := <-ch:
			if len(snapshot) == 1 && snapshot[0].CampaignID == campaignID {
				return
			}
		case <-deadline:
			t.Fatal("drafts_ready snapshot never arrived")
		}
	}
}
