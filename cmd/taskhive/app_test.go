package main

import (
	"errors"
	"testing"
	"time"

	"taskhive/internal/model"
	"taskhive/internal/store"
)

func TestResolve(t *testing.T) {
	tasks := []model.Task{
		{ID: "ab12cd34-0000"},
		{ID: "ab99ffee-0000"},
		{ID: "cafe0000-0000"},
	}
	tests := []struct {
		name    string
		prefix  string
		want    string
		wantErr error
	}{
		{name: "unique prefix", prefix: "caf", want: "cafe0000-0000"},
		{name: "full id", prefix: "ab12cd34-0000", want: "ab12cd34-0000"},
		{name: "upper case", prefix: "AB12", want: "ab12cd34-0000"},
		{name: "ambiguous", prefix: "ab", wantErr: store.ErrValidation},
		{name: "missing", prefix: "zz", wantErr: store.ErrNotFound},
		{name: "empty", prefix: " ", wantErr: store.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolve(tasks, tt.prefix)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got.ID != tt.want {
				t.Fatalf("resolve(%q) = %q, %v", tt.prefix, got.ID, err)
			}
		})
	}
}

func TestParseDue(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	got, err := parseDue("2026-03-01 09:30", loc)
	if err != nil || !got.Equal(time.Date(2026, 3, 1, 9, 30, 0, 0, loc)) {
		t.Fatalf("with time: %v, %v", got, err)
	}
	got, err = parseDue("2026-03-01", loc)
	if err != nil || !got.Equal(time.Date(2026, 3, 1, 23, 59, 0, 0, loc)) {
		t.Fatalf("date only: %v, %v", got, err)
	}
	if _, err := parseDue("next week", loc); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("bad date err = %v", err)
	}
}

func TestFormatDue(t *testing.T) {
	if formatDue(nil, time.UTC) != "-" {
		t.Fatal("nil due not rendered as dash")
	}
	d := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if got := formatDue(&d, time.UTC); got != "2026-03-01 09:30" {
		t.Fatalf("formatDue = %q", got)
	}
}
