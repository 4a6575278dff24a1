package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"taskhive/internal/repository"
)

// Push sends a notification to the Telegram chat linked to recipientID.
// Recipients without a linked chat are skipped.
func (b *Bot) Push(ctx context.Context, recipientID, title, body string) error {
	profile, err := b.deps.Profiles.Get(ctx, recipientID)
	if repository.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("telegram push: %w", err)
	}
	if profile.TelegramChatID == nil {
		return nil
	}
	text := fmt.Sprintf("🔔 <b>%s</b>\n%s", escape(title), escape(body))
	if err := b.sendText(*profile.TelegramChatID, text); err != nil {
		return fmt.Errorf("telegram push: %w", err)
	}
	return nil
}

// SendDailyDigests sends today's digest to every linked chat.
func (b *Bot) SendDailyDigests(ctx context.Context) error {
	profiles, err := b.deps.Profiles.ListLinked(ctx)
	if err != nil {
		return err
	}

	now := b.now().In(b.loc)
	var errs []error
	for _, p := range profiles {
		text, err := b.deps.Digest.DailySummary(ctx, p.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("digest for %s: %w", p.ID, err))
			continue
		}
		if err := b.sendText(*p.TelegramChatID, text); err != nil {
			errs = append(errs, fmt.Errorf("send digest to %d: %w", *p.TelegramChatID, err))
		}
	}
	log.Printf("[info] daily digest sent to %d chats", len(profiles)-len(errs))
	return errors.Join(errs...)
}
