package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskhive/internal/ai"
	"taskhive/internal/model"
	"taskhive/internal/repository"
	"taskhive/internal/session"
	"taskhive/internal/store"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stagePriority
	stageDeadline
	stageHabitName
	stageHabitFrequency
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbHabitPrefix    = "habit:"
	cbSuggestPrefix  = "suggest:"
	cbReadAll        = "readall"
)

type conversationState struct {
	stage conversationStage
	task  model.TaskDraft
	habit model.HabitDraft
}

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID string
	action confirmationAction
}

var errNotLinked = errors.New("chat is not linked")

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ProfileStore is the part of the profile repository the bot needs.
type ProfileStore interface {
	Get(ctx context.Context, id string) (model.Profile, error)
	Upsert(ctx context.Context, id, email, fullName string) (*model.Profile, error)
	FindByTelegramChat(ctx context.Context, chatID int64) (model.Profile, error)
	LinkTelegram(ctx context.Context, id string, chatID int64) error
	ListLinked(ctx context.Context) ([]model.Profile, error)
}

type TokenVerifier interface {
	Verify(token string) (*session.Session, error)
}

type Suggester interface {
	TaskSuggestions(ctx context.Context, userContext string, existing []model.Task) ([]ai.TaskSuggestion, error)
}

type Digest interface {
	DailySummary(ctx context.Context, userID string, now time.Time) (string, error)
}

// Deps are the collaborators of the bot. Suggester may be nil.
type Deps struct {
	Profiles   ProfileStore
	Tokens     TokenVerifier
	Workspaces func(ids store.Identity) *store.Workspace
	Digest     Digest
	Suggester  Suggester
}

// chatSession is the signed-in state of one linked chat.
type chatSession struct {
	gate   *session.Gate
	ws     *store.Workspace
	unbind func()
}

// Bot aggregates the Telegram API with per-chat workspaces.
type Bot struct {
	api  *tgbotapi.BotAPI
	out  sender
	deps Deps
	loc  *time.Location
	now  func() time.Time

	mu            sync.Mutex
	chats         map[int64]*chatSession
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	suggestions   map[int64][]ai.TaskSuggestion
}

func New(token string, deps Deps, loc *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, deps, loc)
	b.api = api
	return b, nil
}

func newBot(out sender, deps Deps, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		out:           out,
		deps:          deps,
		loc:           loc,
		now:           time.Now,
		chats:         make(map[int64]*chatSession),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		suggestions:   make(map[int64][]ai.TaskSuggestion),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	b.Close()
	return nil
}

// Close releases every chat workspace.
func (b *Bot) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for chatID, cs := range b.chats {
		cs.close()
		delete(b.chats, chatID)
	}
}

func (cs *chatSession) close() {
	cs.unbind()
	cs.gate.Close()
}

// workspace returns the live workspace of chatID, opening it from the linked
// profile on first use.
func (b *Bot) workspace(ctx context.Context, chatID int64) (*store.Workspace, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cs, ok := b.chats[chatID]; ok && cs.ws != nil {
		return cs.ws, nil
	}

	profile, err := b.deps.Profiles.FindByTelegramChat(ctx, chatID)
	if repository.IsNotFound(err) {
		return nil, errNotLinked
	}
	if err != nil {
		return nil, err
	}
	cs, err := b.openSession(ctx, profile)
	if err != nil {
		return nil, err
	}
	b.chats[chatID] = cs
	return cs.ws, nil
}

func (b *Bot) openSession(ctx context.Context, profile model.Profile) (*chatSession, error) {
	gate := session.NewGate(session.NewStaticProvider(session.Identity{
		UserID: profile.ID,
		Email:  profile.Email,
		Name:   profile.FullName,
	}))
	if err := gate.Initialize(ctx); err != nil {
		return nil, err
	}
	cs := &chatSession{gate: gate}
	cs.unbind = store.Bind(context.Background(), gate,
		func() *store.Workspace { return b.deps.Workspaces(gate) },
		func(ws *store.Workspace) { cs.ws = ws })
	if cs.ws == nil {
		cs.close()
		return nil, session.ErrUnauthenticated
	}
	return cs, nil
}

// link attaches chatID to the identity in token and replaces any open
// workspace of the chat.
func (b *Bot) link(ctx context.Context, chatID int64, token string) (model.Profile, error) {
	sess, err := b.deps.Tokens.Verify(token)
	if err != nil {
		return model.Profile{}, err
	}
	id := sess.Identity
	profile, err := b.deps.Profiles.Upsert(ctx, id.UserID, id.Email, id.Name)
	if err != nil {
		return model.Profile{}, err
	}
	if err := b.deps.Profiles.LinkTelegram(ctx, id.UserID, chatID); err != nil {
		return model.Profile{}, err
	}

	b.mu.Lock()
	if cs, ok := b.chats[chatID]; ok {
		cs.close()
		delete(b.chats, chatID)
	}
	b.mu.Unlock()

	log.Printf("[info] chat %d linked to %s", chatID, id.UserID)
	return *profile, nil
}

func (b *Bot) getConfirmation(chatID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[chatID]
	return req, ok
}

func (b *Bot) setConfirmation(chatID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[chatID] = req
}

func (b *Bot) clearConfirmation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, chatID)
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

func (b *Bot) setSuggestions(chatID int64, s []ai.TaskSuggestion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suggestions[chatID] = s
}

func (b *Bot) suggestion(chatID int64, i int) (ai.TaskSuggestion, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.suggestions[chatID]
	if i < 0 || i >= len(list) {
		return ai.TaskSuggestion{}, false
	}
	return list[i], true
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

// sendError shows the single user-facing line for err.
func (b *Bot) sendError(chatID int64, err error) error {
	if errors.Is(err, errNotLinked) {
		return b.sendText(chatID, "This chat is not linked yet. Run <code>taskhive auth token</code> and send /link &lt;token&gt;.")
	}
	log.Printf("chat %d: %v", chatID, err)
	return b.sendText(chatID, "⚠️ "+escape(store.Message(err)))
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		log.Printf("callback ack: %v", err)
	}
}
