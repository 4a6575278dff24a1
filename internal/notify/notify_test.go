package notify

import (
	"context"
	"errors"
	"testing"
)

type pushFunc func(ctx context.Context, recipientID, title, body string) error

func (f pushFunc) Push(ctx context.Context, recipientID, title, body string) error {
	return f(ctx, recipientID, title, body)
}

func TestFanoutPushesEveryChannel(t *testing.T) {
	var got []string
	ok := pushFunc(func(_ context.Context, id, title, _ string) error {
		got = append(got, id+":"+title)
		return nil
	})
	failed := errors.New("channel down")
	bad := pushFunc(func(context.Context, string, string, string) error { return failed })

	err := Fanout{bad, nil, ok}.Push(context.Background(), "u1", "Task assigned", "body")
	if !errors.Is(err, failed) {
		t.Fatalf("expected joined channel error, got %v", err)
	}
	if len(got) != 1 || got[0] != "u1:Task assigned" {
		t.Fatalf("healthy channel got %v", got)
	}

	if err := (Fanout{ok}).Push(context.Background(), "u2", "x", "y"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocalNeverFails(t *testing.T) {
	if err := (Local{}).Notify(context.Background(), "Habit completed", "read"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}
