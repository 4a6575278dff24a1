package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskhive/internal/derive"
	"taskhive/internal/model"
	"taskhive/internal/ui"
)

func habitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Manage habits",
	}
	cmd.AddCommand(habitListCmd(), habitAddCmd(), habitDoneCmd(), habitRemoveCmd(), habitHeatmapCmd())
	return cmd
}

func habitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List habits with their streaks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				now := time.Now().In(a.cfg.Location)
				habits := a.ws.Habits.List()
				table := ui.NewTableBuilder([]string{"ID", "NAME", "FREQUENCY", "STREAK", "TODAY"}, len(habits))
				for _, h := range habits {
					today := ui.Muted("-")
					if a.ws.Habits.CompletedToday(h.ID, now) {
						today = ui.Status(model.StatusCompleted)
					}
					table.AddRow(shortID(h.ID), ui.Truncate(h.Name), string(h.Frequency),
						strconv.Itoa(a.ws.Habits.Streak(h.ID, now)), today)
				}
				fmt.Print(table.String())
				return nil
			})
		},
	}
}

func habitAddCmd() *cobra.Command {
	var draft model.HabitDraft
	var frequency string
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				draft.Name = args[0]
				draft.Frequency = model.Frequency(frequency)
				habit, err := a.ws.Habits.Create(ctx, draft)
				if err != nil {
					return err
				}
				fmt.Printf("Created habit %s\n", shortID(habit.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&draft.Description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&frequency, "frequency", "f", "", "Frequency (daily, weekly, monthly)")
	cmd.Flags().StringVar(&draft.Category, "category", "", "Category")
	return cmd
}

func habitDoneCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "done [id]",
		Short: "Record a completion for today",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				habit, err := resolve(a.ws.Habits.List(), args[0])
				if err != nil {
					return err
				}
				if _, err := a.ws.Habits.Complete(ctx, habit.ID, note); err != nil {
					return err
				}
				now := time.Now().In(a.cfg.Location)
				fmt.Printf("%s: streak %d\n", habit.Name, a.ws.Habits.Streak(habit.ID, now))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&note, "note", "n", "", "Note for the completion")
	return cmd
}

func habitRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id]",
		Aliases: []string{"delete"},
		Short:   "Delete a habit and its completions",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				habit, err := resolve(a.ws.Habits.List(), args[0])
				if err != nil {
					return err
				}
				if err := a.ws.Habits.Remove(ctx, habit.ID); err != nil {
					return err
				}
				fmt.Printf("Deleted %q\n", habit.Name)
				return nil
			})
		},
	}
}

func habitHeatmapCmd() *cobra.Command {
	var weeks int
	cmd := &cobra.Command{
		Use:   "heatmap [id]",
		Short: "Show completions per day, one row per week",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				habit, err := resolve(a.ws.Habits.List(), args[0])
				if err != nil {
					return err
				}
				now := time.Now().In(a.cfg.Location)
				fmt.Println(ui.Header(habit.Name))
				fmt.Println(ui.Muted("           S M T W T F S"))
				for _, week := range derive.Heatmap(a.ws.Habits.CompletionsFor(habit.ID), weeks, now) {
					var row strings.Builder
					for _, cell := range week {
						switch {
						case cell.Date.After(now):
							row.WriteString("  ")
						case cell.Completed:
							row.WriteString(" #")
						default:
							row.WriteString(" .")
						}
					}
					fmt.Printf("%s%s\n", week[0].Date.Format("2006-01-02"), row.String())
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&weeks, "weeks", "w", 12, "Weeks to show")
	return cmd
}
