package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storygraph/internal/telegram"
)

type memStates struct {
	states map[int64]*DialogState
}

func newMemStates() *memStates { return &memStates{states: map[int64]*DialogState{}} }

func (m *memStates) Get(_ context.Context, senderID int64) (*DialogState, error) {
	return m.states[senderID], nil
}

func (m *memStates) Set(_ context.Context, senderID int64, state *DialogState) error {
	m.states[senderID] = state
	return nil
}

func (m *memStates) Clear(_ context.Context, senderID int64) error {
	delete(m.states, senderID)
	return nil
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct{ sent []sentMessage }

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) lastTo(chatID int64) string {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].chatID == chatID {
			return f.sent[i].text
		}
	}
	return ""
}

type fakeWorkflow struct {
	users      map[int64]*User
	collectors []User

	registered []User
	requests   []PickupRequest
	exchanges  []Exchange
	completed  []Exchange
	online     map[int64]bool
}

func newFakeWorkflow() *fakeWorkflow {
	return &fakeWorkflow{users: map[int64]*User{}, online: map[int64]bool{}}
}

func (f *fakeWorkflow) RegisterUser(_ context.Context, telegramID int64, name, contact string, loc Location, role Role) (User, error) {
	u := User{ID: "user-reg", TelegramID: telegramID, Name: name, Contact: contact, Location: loc, Role: role, Online: true}
	f.users[telegramID] = &u
	f.registered = append(f.registered, u)
	return u, nil
}

func (f *fakeWorkflow) UserByTelegramID(_ context.Context, telegramID int64) (*User, error) {
	return f.users[telegramID], nil
}

func (f *fakeWorkflow) UserByID(_ context.Context, id string) (*User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeWorkflow) ExchangeByID(_ context.Context, id string) (*Exchange, error) {
	for i := range f.exchanges {
		if f.exchanges[i].ID == id {
			return &f.exchanges[i], nil
		}
	}
	return nil, nil
}

func (f *fakeWorkflow) SetOnline(_ context.Context, telegramID int64, online bool) error {
	f.online[telegramID] = online
	return nil
}

func (f *fakeWorkflow) OnlineCollectors(context.Context) ([]User, error) {
	return f.collectors, nil
}

func (f *fakeWorkflow) CreatePickupRequest(_ context.Context, creatorID string) (PickupRequest, error) {
	r := PickupRequest{ID: "req-1", CreatorID: creatorID, Status: "PENDING"}
	f.requests = append(f.requests, r)
	return r, nil
}

func (f *fakeWorkflow) AssignCollector(_ context.Context, requestID, collectorID string) (PickupRequest, error) {
	r := PickupRequest{ID: requestID, CreatorID: "creator-1", Status: "ACCEPTED", AssignedCollectorID: collectorID}
	return r, nil
}

func (f *fakeWorkflow) CreateExchange(_ context.Context, requestID, creatorID, collectorID string) (Exchange, error) {
	x := Exchange{ID: "ex-1", RequestID: requestID, CreatorID: creatorID, CollectorID: collectorID, Status: "CREATOR_TO_COLLECTOR"}
	f.exchanges = append(f.exchanges, x)
	return x, nil
}

func (f *fakeWorkflow) AttachVerificationPhoto(_ context.Context, exchangeID, photoFileID string) (Exchange, error) {
	for i := range f.exchanges {
		if f.exchanges[i].ID == exchangeID {
			f.exchanges[i].VerificationPhoto = photoFileID
			return f.exchanges[i], nil
		}
	}
	return Exchange{ID: exchangeID, VerificationPhoto: photoFileID}, nil
}

func (f *fakeWorkflow) CompleteExchange(_ context.Context, exchangeID, companyID string, weight float64) (Exchange, error) {
	x := Exchange{ID: exchangeID, CompanyID: companyID, Status: "COMPLETED", Weight: weight}
	f.completed = append(f.completed, x)
	return x, nil
}

type botFixture struct {
	bot    *Bot
	svc    *fakeWorkflow
	states *memStates
	sender *fakeSender
}

func newBotFixture() *botFixture {
	svc := newFakeWorkflow()
	states := newMemStates()
	sender := &fakeSender{}
	return &botFixture{
		bot:    NewBot(svc, states, sender, zap.NewNop().Sugar()),
		svc:    svc,
		states: states,
		sender: sender,
	}
}

func textUpdate(senderID int64, text string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		MessageID: 1,
		From:      &telegram.User{ID: senderID},
		Chat:      &telegram.Chat{ID: senderID, Type: "private"},
		Text:      text,
	}}
}

func (f *botFixture) send(t *testing.T, upd telegram.Update) {
	t.Helper()
	require.NoError(t, f.bot.HandleUpdate(context.Background(), upd))
}

func TestHandleUpdateIgnoresNonMessages(t *testing.T) {
	f := newBotFixture()
	require.NoError(t, f.bot.HandleUpdate(context.Background(), telegram.Update{UpdateID: 1}))
	assert.Empty(t, f.sender.sent)
}

func TestRegistrationFlow(t *testing.T) {
	f := newBotFixture()
	const sender = int64(100)

	f.send(t, textUpdate(sender, "hi"))
	assert.Equal(t, StepRoleSelection, f.states.states[sender].Step)
	assert.Contains(t, f.sender.lastTo(sender), "Who are you?")

	// Invalid choice re-prompts without advancing.
	f.send(t, textUpdate(sender, "collector"))
	assert.Equal(t, StepRoleSelection, f.states.states[sender].Step)

	f.send(t, textUpdate(sender, "2"))
	assert.Equal(t, StepNameInput, f.states.states[sender].Step)
	assert.Equal(t, RoleCollector, f.states.states[sender].Role)

	f.send(t, textUpdate(sender, "Dana"))
	assert.Equal(t, StepContactInput, f.states.states[sender].Step)

	f.send(t, textUpdate(sender, "+995555123456"))
	assert.Equal(t, StepLocationInput, f.states.states[sender].Step)

	// Text instead of a location share re-prompts.
	f.send(t, textUpdate(sender, "Tbilisi"))
	assert.Equal(t, StepLocationInput, f.states.states[sender].Step)
	assert.Empty(t, f.svc.registered)

	loc := textUpdate(sender, "")
	loc.Message.Location = &telegram.Location{Latitude: 41.7, Longitude: 44.8}
	f.send(t, loc)

	require.Len(t, f.svc.registered, 1)
	reg := f.svc.registered[0]
	assert.Equal(t, "Dana", reg.Name)
	assert.Equal(t, "+995555123456", reg.Contact)
	assert.Equal(t, RoleCollector, reg.Role)
	assert.Equal(t, 41.7, reg.Location.Latitude)
	assert.Equal(t, StepMainMenu, f.states.states[sender].Step)
}

func TestCreatorPickupFlow(t *testing.T) {
	f := newBotFixture()
	const creator = int64(200)
	const collector = int64(300)

	f.svc.users[creator] = &User{ID: "creator-1", TelegramID: creator, Role: RoleCreator}
	f.svc.collectors = []User{{ID: "collector-1", TelegramID: collector, Role: RoleCollector}}

	// Any message from a registered creator asks the pickup question.
	f.send(t, textUpdate(creator, "hello"))
	assert.Equal(t, StepWaitingCollector, f.states.states[creator].Step)
	assert.Contains(t, f.sender.lastTo(creator), "pickup")

	f.send(t, textUpdate(creator, "yes"))

	require.Len(t, f.svc.requests, 1)
	assert.Equal(t, "creator-1", f.svc.requests[0].CreatorID)

	// The pending request is staged on the collector's dialog and the
	// collector is notified.
	require.NotNil(t, f.states.states[collector])
	assert.Equal(t, "req-1", f.states.states[collector].CurrentRequestID)
	assert.Contains(t, f.sender.lastTo(collector), "pickup request")
}

func TestCreatorDeclinesPickup(t *testing.T) {
	f := newBotFixture()
	const creator = int64(200)
	f.svc.users[creator] = &User{ID: "creator-1", TelegramID: creator, Role: RoleCreator}
	f.states.states[creator] = &DialogState{Step: StepWaitingCollector}

	f.send(t, textUpdate(creator, "no"))

	assert.Empty(t, f.svc.requests)
	assert.Equal(t, StepMainMenu, f.states.states[creator].Step)
}

func TestNoCollectorsOnline(t *testing.T) {
	f := newBotFixture()
	const creator = int64(200)
	f.svc.users[creator] = &User{ID: "creator-1", TelegramID: creator, Role: RoleCreator}
	f.states.states[creator] = &DialogState{Step: StepWaitingCollector}

	f.send(t, textUpdate(creator, "yes"))

	assert.Empty(t, f.svc.requests)
	assert.Contains(t, f.sender.lastTo(creator), "No collectors")
}

func TestCollectorAcceptAndHandover(t *testing.T) {
	f := newBotFixture()
	const creator = int64(200)
	const collector = int64(300)

	f.svc.users[creator] = &User{ID: "creator-1", TelegramID: creator, Role: RoleCreator, Contact: "+995111"}
	f.svc.users[collector] = &User{ID: "collector-1", TelegramID: collector, Role: RoleCollector}
	f.states.states[collector] = &DialogState{Step: StepMainMenu, CurrentRequestID: "req-1"}

	f.send(t, textUpdate(collector, "yes"))

	require.Len(t, f.svc.exchanges, 1)
	x := f.svc.exchanges[0]
	assert.Equal(t, "req-1", x.RequestID)
	assert.Equal(t, "collector-1", x.CollectorID)
	assert.Equal(t, "ex-1", f.states.states[collector].CurrentExchangeID)
	assert.Empty(t, f.states.states[collector].CurrentRequestID)
	assert.Contains(t, f.sender.lastTo(creator), "accepted")

	f.send(t, textUpdate(collector, "arrived"))

	assert.Equal(t, StepWaitingVerification, f.states.states[collector].Step)
	assert.Contains(t, f.sender.lastTo(creator), "arrived")

	// A photo attaches verification and moves to weighing.
	photo := textUpdate(collector, "")
	photo.Message.Photo = telegram.PhotoSizes{{FileID: "small"}, {FileID: "best"}}
	f.send(t, photo)

	assert.Equal(t, "best", f.svc.exchanges[0].VerificationPhoto)
	assert.Equal(t, StepWaitingWeight, f.states.states[collector].Step)

	// Non-numeric weight re-prompts.
	f.send(t, textUpdate(collector, "heavy"))
	assert.Empty(t, f.svc.completed)

	f.send(t, textUpdate(collector, "12.5"))
	require.Len(t, f.svc.completed, 1)
	assert.Equal(t, 12.5, f.svc.completed[0].Weight)
	assert.Equal(t, StepMainMenu, f.states.states[collector].Step)
}

func TestCollectorGoesOnlineByDefault(t *testing.T) {
	f := newBotFixture()
	const collector = int64(300)
	f.svc.users[collector] = &User{ID: "collector-1", TelegramID: collector, Role: RoleCollector}

	f.send(t, textUpdate(collector, "hello"))

	assert.True(t, f.svc.online[collector])
	assert.Contains(t, f.sender.lastTo(collector), "online")
}
