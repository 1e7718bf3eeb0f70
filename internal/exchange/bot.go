package exchange

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"storygraph/internal/telegram"
)

// Sender is the outbound half of the dialog.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Workflow is the subset of Service the dialog drives.
type Workflow interface {
	RegisterUser(ctx context.Context, telegramID int64, name, contact string, loc Location, role Role) (User, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	ExchangeByID(ctx context.Context, id string) (*Exchange, error)
	SetOnline(ctx context.Context, telegramID int64, online bool) error
	OnlineCollectors(ctx context.Context) ([]User, error)
	CreatePickupRequest(ctx context.Context, creatorID string) (PickupRequest, error)
	AssignCollector(ctx context.Context, requestID, collectorID string) (PickupRequest, error)
	CreateExchange(ctx context.Context, requestID, creatorID, collectorID string) (Exchange, error)
	AttachVerificationPhoto(ctx context.Context, exchangeID, photoFileID string) (Exchange, error)
	CompleteExchange(ctx context.Context, exchangeID, companyID string, weight float64) (Exchange, error)
}

// Bot runs the exchange conversation one update at a time. All dialog
// position lives in the StateStore, so any instance can handle any
// update.
type Bot struct {
	svc    Workflow
	states StateStore
	tg     Sender
	log    *zap.SugaredLogger
}

func NewBot(svc Workflow, states StateStore, tg Sender, log *zap.SugaredLogger) *Bot {
	return &Bot{svc: svc, states: states, tg: tg, log: log}
}

const welcomeText = `Welcome to the recycle exchange!
Who are you?
1 - I have waste to give away
2 - I collect waste
3 - I run a recycling company
Reply with a number.`

func (b *Bot) HandleUpdate(ctx context.Context, upd telegram.Update) error {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	senderID := msg.From.ID

	user, err := b.svc.UserByTelegramID(ctx, senderID)
	if err != nil {
		return err
	}

	state, err := b.states.Get(ctx, senderID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &DialogState{Step: StepRegistration}
	}

	if user == nil {
		return b.handleRegistration(ctx, msg, state)
	}
	return b.handleDialog(ctx, msg, user, state)
}

func (b *Bot) handleRegistration(ctx context.Context, msg *telegram.Message, state *DialogState) error {
	senderID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	switch state.Step {
	case StepRoleSelection:
		role, ok := roleByChoice(text)
		if !ok {
			b.reply(ctx, msg.Chat.ID, "Please reply with 1, 2 or 3.")
			return nil
		}
		state.Role = role
		state.Step = StepNameInput
		b.reply(ctx, msg.Chat.ID, "What is your name?")

	case StepNameInput:
		if text == "" {
			b.reply(ctx, msg.Chat.ID, "Please send your name as text.")
			return nil
		}
		state.Name = text
		state.Step = StepContactInput
		b.reply(ctx, msg.Chat.ID, "How can we contact you? (phone or @username)")

	case StepContactInput:
		if text == "" {
			b.reply(ctx, msg.Chat.ID, "Please send your contact as text.")
			return nil
		}
		state.Contact = text
		state.Step = StepLocationInput
		b.reply(ctx, msg.Chat.ID, "Share your location so we can match you with nearby partners.")

	case StepLocationInput:
		if msg.Location == nil {
			b.reply(ctx, msg.Chat.ID, "Please share a location using the attachment menu.")
			return nil
		}
		loc := Location{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
		if _, err := b.svc.RegisterUser(ctx, senderID, state.Name, state.Contact, loc, state.Role); err != nil {
			b.log.Errorw("registration failed", "sender", senderID, "err", err)
			b.reply(ctx, msg.Chat.ID, "Registration failed, let's start over. Say anything to begin.")
			return b.states.Set(ctx, senderID, &DialogState{Step: StepRegistration})
		}
		state.Step = StepMainMenu
		b.reply(ctx, msg.Chat.ID, registrationDoneText(state.Role))

	default:
		state.Step = StepRoleSelection
		b.reply(ctx, msg.Chat.ID, welcomeText)
	}

	return b.states.Set(ctx, senderID, state)
}

func (b *Bot) handleDialog(ctx context.Context, msg *telegram.Message, user *User, state *DialogState) error {
	senderID := msg.From.ID
	text := strings.ToLower(strings.TrimSpace(msg.Text))

	switch state.Step {
	case StepWaitingCollector:
		return b.creatorPickupAnswer(ctx, msg, user, state, text)

	case StepWaitingVerification:
		if len(msg.Photo) == 0 {
			b.reply(ctx, msg.Chat.ID, "Please send a photo of the waste to verify the handover.")
			return nil
		}
		best := msg.Photo[len(msg.Photo)-1]
		if _, err := b.svc.AttachVerificationPhoto(ctx, state.CurrentExchangeID, best.FileID); err != nil {
			return err
		}
		state.Step = StepWaitingWeight
		b.reply(ctx, msg.Chat.ID, "Photo recorded. Send the weight in kilograms once it is measured.")
		return b.states.Set(ctx, senderID, state)

	case StepWaitingWeight:
		weight, err := strconv.ParseFloat(text, 64)
		if err != nil || weight <= 0 {
			b.reply(ctx, msg.Chat.ID, "Please send the weight as a number, e.g. 12.5")
			return nil
		}
		if _, err := b.svc.CompleteExchange(ctx, state.CurrentExchangeID, user.ID, weight); err != nil {
			return err
		}
		b.reply(ctx, msg.Chat.ID, "Exchange completed. Thank you!")
		return b.states.Set(ctx, senderID, &DialogState{Step: StepMainMenu})
	}

	switch user.Role {
	case RoleCreator:
		state.Step = StepWaitingCollector
		b.reply(ctx, msg.Chat.ID, "Do you have waste ready for pickup? (yes/no)")
		return b.states.Set(ctx, senderID, state)

	case RoleCollector:
		return b.collectorMenu(ctx, msg, user, state, text)

	case RoleCompany:
		b.reply(ctx, msg.Chat.ID, "You will be contacted when a collector brings waste for weighing.")
		return nil
	}

	// Unknown role, likely stale data. Restart the dialog.
	b.reply(ctx, msg.Chat.ID, welcomeText)
	return b.states.Set(ctx, senderID, &DialogState{Step: StepRoleSelection})
}

// creatorPickupAnswer handles the yes/no answer to the pickup prompt:
// yes opens a request and pings every online collector.
func (b *Bot) creatorPickupAnswer(ctx context.Context, msg *telegram.Message, user *User, state *DialogState, text string) error {
	senderID := msg.From.ID

	if text != "yes" {
		b.reply(ctx, msg.Chat.ID, "Okay. Message me again when you have waste for pickup.")
		return b.states.Set(ctx, senderID, &DialogState{Step: StepMainMenu})
	}

	collectors, err := b.svc.OnlineCollectors(ctx)
	if err != nil {
		return err
	}
	if len(collectors) == 0 {
		b.reply(ctx, msg.Chat.ID, "No collectors are online right now. Try again later.")
		return b.states.Set(ctx, senderID, &DialogState{Step: StepMainMenu})
	}

	request, err := b.svc.CreatePickupRequest(ctx, user.ID)
	if err != nil {
		return err
	}

	for _, c := range collectors {
		if err := b.states.Set(ctx, c.TelegramID, &DialogState{
			Step:             StepMainMenu,
			CurrentRequestID: request.ID,
		}); err != nil {
			b.log.Errorw("failed to stage request for collector", "collector", c.TelegramID, "err", err)
			continue
		}
		b.reply(ctx, c.TelegramID, "New pickup request nearby. Reply yes to accept.")
	}

	state.Step = StepMainMenu
	state.CurrentRequestID = request.ID
	b.reply(ctx, msg.Chat.ID, "Request created. Online collectors have been notified.")
	return b.states.Set(ctx, senderID, state)
}

func (b *Bot) collectorMenu(ctx context.Context, msg *telegram.Message, user *User, state *DialogState, text string) error {
	senderID := msg.From.ID

	switch {
	case text == "yes" && state.CurrentRequestID != "":
		request, err := b.svc.AssignCollector(ctx, state.CurrentRequestID, user.ID)
		if err != nil {
			return err
		}
		x, err := b.svc.CreateExchange(ctx, request.ID, request.CreatorID, user.ID)
		if err != nil {
			return err
		}
		state.CurrentExchangeID = x.ID
		state.CurrentRequestID = ""

		if creator, err := b.svc.UserByID(ctx, request.CreatorID); err == nil && creator != nil {
			b.reply(ctx, creator.TelegramID, "A collector accepted your request and is on the way.")
		}
		b.reply(ctx, msg.Chat.ID, "Request accepted. Message 'arrived' when you reach the pickup point.")
		return b.states.Set(ctx, senderID, state)

	case text == "arrived" && state.CurrentExchangeID != "":
		x, err := b.svc.ExchangeByID(ctx, state.CurrentExchangeID)
		if err != nil {
			return err
		}
		if x == nil {
			b.reply(ctx, msg.Chat.ID, "That exchange no longer exists.")
			return b.states.Set(ctx, senderID, &DialogState{Step: StepMainMenu})
		}
		creator, err := b.svc.UserByID(ctx, x.CreatorID)
		if err != nil {
			return err
		}
		if creator != nil {
			b.reply(ctx, creator.TelegramID, "Your collector has arrived.")
			b.reply(ctx, msg.Chat.ID, "Contact for the handover: "+creator.Contact)
		}
		state.Step = StepWaitingVerification
		b.reply(ctx, msg.Chat.ID, "Send a photo of the waste to verify the handover.")
		return b.states.Set(ctx, senderID, state)

	default:
		if err := b.svc.SetOnline(ctx, user.TelegramID, true); err != nil {
			return err
		}
		b.reply(ctx, msg.Chat.ID, "You are online. I will ping you when a pickup request comes in.")
		return nil
	}
}

// reply sends best-effort: a lost Telegram message never fails the
// dialog transition.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.tg.SendMessage(ctx, chatID, text); err != nil {
		b.log.Warnw("failed to send message", "chat", chatID, "err", err)
	}
}

func roleByChoice(text string) (Role, bool) {
	switch text {
	case "1":
		return RoleCreator, true
	case "2":
		return RoleCollector, true
	case "3":
		return RoleCompany, true
	}
	return "", false
}

func registrationDoneText(role Role) string {
	switch role {
	case RoleCreator:
		return "You're registered! Message me whenever you have waste ready for pickup."
	case RoleCollector:
		return "You're registered and online. I will notify you about pickup requests nearby."
	default:
		return "You're registered! Collectors will bring verified waste to you for weighing."
	}
}
