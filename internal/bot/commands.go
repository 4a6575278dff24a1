package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskhive/internal/derive"
	"taskhive/internal/model"
	"taskhive/internal/service"
	"taskhive/internal/store"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(chatID)
		b.clearConfirmation(chatID)
		return b.sendText(chatID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s", chatID, msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(chatID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.getConversation(chatID) != nil {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(chatID, "I did not get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(chatID)
	case "link":
		return b.handleLink(ctx, chatID, args)
	case "newtask":
		return b.startConversation(ctx, chatID, stageTitle)
	case "newhabit":
		return b.startConversation(ctx, chatID, stageHabitName)
	case "tasks":
		return b.sendTaskList(ctx, chatID)
	case "today":
		return b.handleToday(ctx, chatID)
	case "complete":
		return b.handleTaskCommand(ctx, chatID, args, actionComplete)
	case "delete":
		return b.handleTaskCommand(ctx, chatID, args, actionDelete)
	case "habits":
		return b.sendHabitList(ctx, chatID)
	case "stats":
		return b.handleStats(ctx, chatID)
	case "notifications":
		return b.handleNotifications(ctx, chatID)
	case "orgs":
		return b.handleOrganizations(ctx, chatID)
	case "neworg":
		return b.handleNewOrganization(ctx, chatID, args)
	case "join":
		return b.handleJoin(ctx, chatID, args)
	case "suggest":
		return b.handleSuggest(ctx, chatID, args)
	case "cancel":
		b.clearConversation(chatID)
		b.clearConfirmation(chatID)
		return b.sendText(chatID, "⏪ Input cancelled.")
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I am your TaskHive planner.</b>\n\n", escape(name))
	if _, err := b.workspace(ctx, msg.Chat.ID); err != nil {
		text += "Link this chat first: run <code>taskhive auth token</code> and send /link &lt;token&gt;."
		return b.sendText(msg.Chat.ID, text)
	}
	return b.sendText(msg.Chat.ID, text+helpText)
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /newtask — add a task step by step\n" +
	"• /tasks — open tasks with buttons to complete them\n" +
	"• /today — today's digest\n" +
	"• /complete &lt;id&gt; — complete a task by id prefix\n" +
	"• /delete &lt;id&gt; — delete a task\n" +
	"• /habits — habits and streaks\n" +
	"• /newhabit — add a habit\n" +
	"• /stats — last 7 days\n" +
	"• /notifications — inbox\n" +
	"• /orgs, /neworg &lt;name&gt;, /join &lt;code&gt; — organizations\n" +
	"• /suggest &lt;context&gt; — AI task ideas\n" +
	"• /link &lt;token&gt; — link this chat to your account\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleHelp(chatID int64) error {
	return b.sendText(chatID, helpText)
}

func (b *Bot) handleLink(ctx context.Context, chatID int64, token string) error {
	if token == "" {
		return b.sendText(chatID, "Send the token like this: /link &lt;token&gt;")
	}
	profile, err := b.link(ctx, chatID, token)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if _, err := b.workspace(ctx, chatID); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🔗 Linked to <b>%s</b>.\n\n%s", escape(profile.DisplayName()), helpText))
}

func (b *Bot) startConversation(ctx context.Context, chatID int64, stage conversationStage) error {
	if _, err := b.workspace(ctx, chatID); err != nil {
		return b.sendError(chatID, err)
	}
	b.setConversation(chatID, &conversationState{stage: stage})
	if stage == stageHabitName {
		return b.sendWithReplyMarkup(chatID, "🆕 New habit.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
	}
	return b.sendWithReplyMarkup(chatID, "🆕 New task.\n<b>Step 1:</b> what is the title?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	state := b.getConversation(chatID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The title cannot be empty.", cancelKeyboard())
		}
		state.task.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(chatID, "✏️ Add a short description (or press Skip).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.task.Description = text
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(chatID, "🎯 Pick a priority.", priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			p, ok := parsePriority(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "Pick low, medium or high.", priorityKeyboard())
			}
			state.task.Priority = p
		}
		state.stage = stageDeadline
		return b.sendWithReplyMarkup(chatID, "⏰ Due date as <code>2026-11-30</code> or <code>2026-11-30 18:00</code> (or Skip).", skipKeyboard())
	case stageDeadline:
		if !isSkipInput(text) {
			due, err := parseDue(text, b.loc)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "I cannot read that date. Use <code>2026-11-30</code> or <code>2026-11-30 18:00</code>.", skipKeyboard())
			}
			state.task.DueDate = &due
		}
		b.clearConversation(chatID)
		return b.finishTaskCreation(ctx, chatID, state.task)
	case stageHabitName:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The name cannot be empty.", cancelKeyboard())
		}
		state.habit.Name = text
		state.stage = stageHabitFrequency
		return b.sendWithReplyMarkup(chatID, "🔁 How often?", frequencyKeyboard())
	case stageHabitFrequency:
		if !isSkipInput(text) {
			f, ok := parseFrequency(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "Pick daily, weekly or monthly.", frequencyKeyboard())
			}
			state.habit.Frequency = f
		}
		b.clearConversation(chatID)
		return b.finishHabitCreation(ctx, chatID, state.habit)
	default:
		b.clearConversation(chatID)
		return b.sendText(chatID, "Input reset. Try /newtask again.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, draft model.TaskDraft) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	task, err := ws.Tasks.Create(ctx, draft)
	if err != nil {
		return b.sendError(chatID, err)
	}
	log.Printf("[info] task created id=%s chat=%d", task.ID, chatID)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> <code>%s</code>\n", shortID(task.ID)))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s\n", task.Priority))
	if task.DueDate != nil {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.In(b.loc).Format("2006-01-02 15:04")))
	}
	if err := b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) finishHabitCreation(ctx context.Context, chatID int64, draft model.HabitDraft) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	habit, err := ws.Habits.Create(ctx, draft)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("♻️ Habit <b>%s</b> (%s) added.", escape(habit.Name), habit.Frequency)); err != nil {
		return err
	}
	return b.sendHabitList(ctx, chatID)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}

	var open []model.Task
	for _, task := range ws.Tasks.List() {
		if !task.Completed() {
			open = append(open, task)
		}
	}
	if len(open) == 0 {
		return b.sendText(chatID, "No open tasks. Add one with /newtask.")
	}

	sort.SliceStable(open, func(i, j int) bool {
		a, c := open[i], open[j]
		switch {
		case a.DueDate != nil && c.DueDate != nil:
			return a.DueDate.Before(*c.DueDate)
		case a.DueDate != nil:
			return true
		case c.DueDate != nil:
			return false
		}
		return priorityRank(a.Priority) > priorityRank(c.Priority)
	})

	now := b.now().In(b.loc)
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Press a button to complete or delete a task.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range open {
		builder.WriteString(fmt.Sprintf("<code>%s</code> ", shortID(task.ID)))
		builder.WriteString(service.FormatTask(task, now))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(task.Title, 24), cbCompletePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.out.Send(msg)
	return err
}

func (b *Bot) handleToday(ctx context.Context, chatID int64) error {
	if _, err := b.workspace(ctx, chatID); err != nil {
		return b.sendError(chatID, err)
	}
	profile, err := b.deps.Profiles.FindByTelegramChat(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	text, err := b.deps.Digest.DailySummary(ctx, profile.ID, b.now().In(b.loc))
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, text)
}

// handleTaskCommand resolves an id prefix and asks for confirmation.
func (b *Bot) handleTaskCommand(ctx context.Context, chatID int64, prefix string, action confirmationAction) error {
	if prefix == "" {
		return b.sendText(chatID, "Give a task id: /complete 1a2b3c4d")
	}
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	task, ok := findTask(ws, prefix)
	if !ok {
		return b.sendText(chatID, "Task not found.")
	}
	return b.askConfirmation(chatID, task, action)
}

func (b *Bot) askConfirmation(chatID int64, task model.Task, action confirmationAction) error {
	if action == actionComplete && task.Completed() {
		return b.sendText(chatID, "That task is already completed.")
	}
	text := fmt.Sprintf("Complete «%s»?", escape(normalizeTitle(task.Title)))
	if action == actionDelete {
		text = fmt.Sprintf("Delete «%s»?", escape(normalizeTitle(task.Title)))
	}
	b.setConfirmation(chatID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(chatID)
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, chatID, req.taskID)
		}
		return b.completeTaskAndRefresh(ctx, chatID, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(chatID)
		return b.sendText(chatID, "🔹 Cancelled.")
	default:
		return b.sendWithReplyMarkup(chatID, "Confirm or cancel.", confirmKeyboard())
	}
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, taskID string) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	status := model.StatusCompleted
	task, err := ws.Tasks.Update(ctx, taskID, model.TaskPatch{Status: &status})
	if err != nil {
		return b.sendError(chatID, err)
	}
	log.Printf("[info] task completed id=%s chat=%d", task.ID, chatID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("✅ «%s» completed.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, taskID string) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	title := "task"
	if task, ok := ws.Tasks.Get(taskID); ok {
		title = task.Title
	}
	if err := ws.Tasks.Remove(ctx, taskID); err != nil {
		return b.sendError(chatID, err)
	}
	log.Printf("[info] task deleted id=%s chat=%d", taskID, chatID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) sendHabitList(ctx context.Context, chatID int64) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	habits := ws.Habits.List()
	if len(habits) == 0 {
		return b.sendText(chatID, "No habits yet. Add one with /newhabit.")
	}

	now := b.now().In(b.loc)
	var builder strings.Builder
	builder.WriteString("♻️ <b>Habits</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, h := range habits {
		mark := "⬜"
		if ws.Habits.CompletedToday(h.ID, now) {
			mark = "✅"
		} else {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(h.Name, 28), cbHabitPrefix+h.ID),
			))
		}
		builder.WriteString(fmt.Sprintf("%s %s · %s · 🔥 %d\n", mark, escape(h.Name), h.Frequency, ws.Habits.Streak(h.ID, now)))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.out.Send(msg)
	return err
}

func (b *Bot) completeHabit(ctx context.Context, chatID int64, habitID string) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	now := b.now().In(b.loc)
	if ws.Habits.CompletedToday(habitID, now) {
		return b.sendText(chatID, "Already done today.")
	}
	if _, err := ws.Habits.Complete(ctx, habitID, ""); err != nil {
		return b.sendError(chatID, err)
	}
	habit, _ := ws.Habits.Get(habitID)
	if err := b.sendText(chatID, fmt.Sprintf("🔥 %s · streak %d", escape(habit.Name), ws.Habits.Streak(habitID, now))); err != nil {
		return err
	}
	return b.sendHabitList(ctx, chatID)
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	now := b.now().In(b.loc)
	s := derive.Summarize(ws.Tasks.List(), ws.Habits.List(), ws.Habits.Completions(), 7, now)

	var builder strings.Builder
	builder.WriteString("📊 <b>Last 7 days</b>\n\n")
	builder.WriteString(fmt.Sprintf("Tasks: %d done · %d pending · %d in progress · %d overdue\n",
		s.Tasks.Completed, s.Tasks.Pending, s.Tasks.InProgress, s.Tasks.Overdue))
	builder.WriteString(fmt.Sprintf("Completion rate: %d%%\n\n", s.Tasks.CompletionRate))
	builder.WriteString(fmt.Sprintf("Habits: %d active · longest streak %d · consistency %d%%\n",
		s.Habits.ActiveHabits, s.Habits.LongestStreak, s.Habits.Consistency))
	builder.WriteString("\n<b>Completed per day</b>\n")
	for _, p := range derive.TrendSeries(ws.Tasks.List(), 7, now) {
		builder.WriteString(fmt.Sprintf("%s %s %d\n", p.Date.Format("Mon"), strings.Repeat("▇", p.Completed), p.Completed))
	}
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleNotifications(ctx context.Context, chatID int64) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	notes := ws.Notifications.List()
	if len(notes) == 0 {
		return b.sendText(chatID, "📭 No notifications.")
	}
	if len(notes) > 10 {
		notes = notes[:10]
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🔔 <b>Notifications</b> (%d unread)\n\n", ws.Notifications.UnreadCount()))
	for _, n := range notes {
		dot := "▫️"
		if !n.Read {
			dot = "🔵"
		}
		builder.WriteString(fmt.Sprintf("%s <b>%s</b> %s\n   %s\n", dot, escape(n.Title()),
			n.CreatedAt.In(b.loc).Format("Jan 2 15:04"), escape(n.Message)))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if ws.Notifications.UnreadCount() > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mark all read", cbReadAll),
		))
	}
	_, err = b.out.Send(msg)
	return err
}

func (b *Bot) handleOrganizations(ctx context.Context, chatID int64) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	orgs := ws.Organizations.List()
	if len(orgs) == 0 {
		return b.sendText(chatID, "You are not in any organization. Create one with /neworg &lt;name&gt; or /join &lt;code&gt;.")
	}
	var builder strings.Builder
	builder.WriteString("🏢 <b>Organizations</b>\n\n")
	for _, org := range orgs {
		builder.WriteString(fmt.Sprintf("• <b>%s</b> · invite <code>%s</code>\n", escape(org.Name), org.InviteCode))
	}
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleNewOrganization(ctx context.Context, chatID int64, name string) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	org, err := ws.Organizations.Create(ctx, model.OrganizationDraft{Name: name})
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🏢 <b>%s</b> created. Invite code: <code>%s</code>", escape(org.Name), org.InviteCode))
}

func (b *Bot) handleJoin(ctx context.Context, chatID int64, code string) error {
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	org, err := ws.Organizations.Join(ctx, code)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🤝 You joined <b>%s</b>.", escape(org.Name)))
}

func (b *Bot) handleSuggest(ctx context.Context, chatID int64, userContext string) error {
	if b.deps.Suggester == nil {
		return b.sendText(chatID, "AI suggestions are not configured.")
	}
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	suggestions, err := b.deps.Suggester.TaskSuggestions(ctx, userContext, ws.Tasks.List())
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(suggestions) == 0 {
		return b.sendText(chatID, "No suggestions this time.")
	}
	b.setSuggestions(chatID, suggestions)

	var builder strings.Builder
	builder.WriteString("💡 <b>Suggestions</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, s := range suggestions {
		builder.WriteString(fmt.Sprintf("%d. <b>%s</b> (%s)\n   %s\n", i+1, escape(s.Title), s.Priority, escape(s.Description)))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ "+shortTitle(s.Title, 28), cbSuggestPrefix+strconv.Itoa(i)),
		))
	}
	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.out.Send(msg)
	return err
}

func (b *Bot) acceptSuggestion(ctx context.Context, chatID int64, index int) error {
	s, ok := b.suggestion(chatID, index)
	if !ok {
		return b.sendText(chatID, "That suggestion has expired. Run /suggest again.")
	}
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	task, err := ws.Tasks.Create(ctx, s.Draft())
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("➕ Added «%s».", escape(task.Title)))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data
	b.ack(cb, "")

	switch {
	case strings.HasPrefix(data, cbCompletePrefix), strings.HasPrefix(data, cbDeletePrefix):
		action := actionComplete
		taskID := strings.TrimPrefix(data, cbCompletePrefix)
		if strings.HasPrefix(data, cbDeletePrefix) {
			action = actionDelete
			taskID = strings.TrimPrefix(data, cbDeletePrefix)
		}
		log.Printf("[info] callback %s chat=%d task=%s", data[:strings.Index(data, ":")], chatID, taskID)
		ws, err := b.workspace(ctx, chatID)
		if err != nil {
			return b.sendError(chatID, err)
		}
		task, ok := ws.Tasks.Get(taskID)
		if !ok {
			return b.sendText(chatID, "Task not found or already deleted.")
		}
		return b.askConfirmation(chatID, task, action)
	case strings.HasPrefix(data, cbHabitPrefix):
		return b.completeHabit(ctx, chatID, strings.TrimPrefix(data, cbHabitPrefix))
	case strings.HasPrefix(data, cbSuggestPrefix):
		i, err := strconv.Atoi(strings.TrimPrefix(data, cbSuggestPrefix))
		if err != nil {
			return nil
		}
		return b.acceptSuggestion(ctx, chatID, i)
	case data == cbReadAll:
		ws, err := b.workspace(ctx, chatID)
		if err != nil {
			return b.sendError(chatID, err)
		}
		n, err := ws.Notifications.MarkAllRead(ctx)
		if err != nil {
			return b.sendError(chatID, err)
		}
		return b.sendText(chatID, fmt.Sprintf("📭 Marked %d as read.", n))
	default:
		return nil
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	chatID := msg.Chat.ID
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startConversation(ctx, chatID, stageTitle)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(ctx, chatID)
	case strings.ToLower(menuLabelHabits):
		return true, b.sendHabitList(ctx, chatID)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(chatID)
	default:
		return false, nil
	}
}

func findTask(ws *store.Workspace, prefix string) (model.Task, bool) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	var match model.Task
	found := 0
	for _, t := range ws.Tasks.List() {
		if strings.HasPrefix(t.ID, prefix) {
			match = t
			found++
		}
	}
	return match, found == 1
}

func parseDue(text string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02 15:04", text, loc); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", text, loc)
	if err != nil {
		return time.Time{}, err
	}
	// a bare date is due at the end of that day
	return d.Add(23*time.Hour + 59*time.Minute), nil
}
