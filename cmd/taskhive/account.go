package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"taskhive/internal/ai"
	"taskhive/internal/derive"
	"taskhive/internal/repository"
	"taskhive/internal/session"
	"taskhive/internal/ui"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage access tokens",
	}
	cmd.AddCommand(authTokenCmd())
	return cmd
}

func authTokenCmd() *cobra.Command {
	var id session.Identity
	var ttl time.Duration
	var service bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token and create the profile",
		Long: `Issue a signed access token for a user. Export it as TASKHIVE_TOKEN
for the CLI or send it to the Telegram bot with /link.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			if service {
				token, err := session.NewTokenProvider(cfg.JWTSecret).Issue(session.Identity{UserID: session.ServiceUserID}, ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}
			if id.UserID == "" {
				id.UserID = uuid.NewString()
			}
			token, err := session.NewTokenProvider(cfg.JWTSecret).Issue(id, ttl)
			if err != nil {
				return err
			}
			profiles := repository.NewProfileRepository(db)
			if _, err := profiles.Upsert(context.Background(), id.UserID, id.Email, id.Name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "user %s\n", id.UserID)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.UserID, "user", "", "User id (a new one when empty)")
	cmd.Flags().StringVar(&id.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&id.Name, "name", "", "Display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime")
	cmd.Flags().BoolVar(&service, "service", false, "Issue a service token for the reminder sweep endpoint")
	return cmd
}

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notify",
		Aliases: []string{"notifications"},
		Short:   "Read the notification inbox",
	}
	cmd.AddCommand(notifyListCmd(), notifyReadCmd())
	return cmd
}

func notifyListCmd() *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				notes := a.ws.Notifications.List()
				table := ui.NewTableBuilder([]string{"ID", "", "TITLE", "MESSAGE", "WHEN"}, len(notes))
				for _, n := range notes {
					if unread && n.Read {
						continue
					}
					mark := "*"
					if n.Read {
						mark = " "
					}
					table.AddRow(shortID(n.ID), mark, n.Title(), ui.Truncate(n.Message),
						ui.Muted(n.CreatedAt.In(a.cfg.Location).Format("Jan 2 15:04")))
				}
				fmt.Print(table.String())
				fmt.Printf("%d unread\n", a.ws.Notifications.UnreadCount())
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&unread, "unread", "u", false, "Only unread notifications")
	return cmd
}

func notifyReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read [id]",
		Short: "Mark one notification read, or all without an id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if len(args) == 0 {
					n, err := a.ws.Notifications.MarkAllRead(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("Marked %d read\n", n)
					return nil
				}
				note, err := resolve(a.ws.Notifications.List(), args[0])
				if err != nil {
					return err
				}
				return a.ws.Notifications.MarkRead(ctx, note.ID)
			})
		},
	}
}

func statsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task and habit statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				now := time.Now().In(a.cfg.Location)
				tasks := a.ws.Tasks.List()
				s := derive.Summarize(tasks, a.ws.Habits.List(), a.ws.Habits.Completions(), days, now)

				fmt.Println(ui.Header(fmt.Sprintf("Last %d days", days)))
				fmt.Print(ui.FormatTable([]string{"TASKS", ""}, [][]string{
					{"completed", strconv.Itoa(s.Tasks.Completed)},
					{"pending", strconv.Itoa(s.Tasks.Pending)},
					{"in progress", strconv.Itoa(s.Tasks.InProgress)},
					{"overdue", strconv.Itoa(s.Tasks.Overdue)},
					{"completion rate", fmt.Sprintf("%d%%", s.Tasks.CompletionRate)},
				}))
				fmt.Println()
				fmt.Print(ui.FormatTable([]string{"HABITS", ""}, [][]string{
					{"active", strconv.Itoa(s.Habits.ActiveHabits)},
					{"longest streak", strconv.Itoa(s.Habits.LongestStreak)},
					{"consistency", fmt.Sprintf("%d%%", s.Habits.Consistency)},
					{"completions", strconv.Itoa(s.Habits.TotalCompletions)},
				}))
				fmt.Println()

				trend := ui.NewTableBuilder([]string{"DAY", "DONE", "CREATED"}, days)
				for _, p := range derive.TrendSeries(tasks, days, now) {
					trend.AddRow(p.Date.Format("Mon Jan 2"), strings.Repeat("#", p.Completed), strconv.Itoa(p.Total))
				}
				fmt.Print(trend.String())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Window in days")
	return cmd
}

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Ask the AI functions for ideas",
	}
	cmd.AddCommand(suggestTasksCmd(), suggestHabitsCmd(), suggestInsightsCmd())
	return cmd
}

func aiClient(a *app) *ai.Client {
	return ai.NewClient(a.cfg.FunctionsURL, a.cfg.Token)
}

func suggestTasksCmd() *cobra.Command {
	var add bool
	cmd := &cobra.Command{
		Use:   "tasks [context]",
		Short: "Suggest new tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				suggestions, err := aiClient(a).TaskSuggestions(ctx, strings.Join(args, " "), a.ws.Tasks.List())
				if err != nil {
					return err
				}
				table := ui.NewTableBuilder([]string{"#", "TITLE", "PRIORITY", "CATEGORY", "DESCRIPTION"}, len(suggestions))
				for i, s := range suggestions {
					table.AddRow(strconv.Itoa(i+1), ui.Truncate(s.Title), ui.Priority(s.Priority), s.Category, ui.Truncate(s.Description))
				}
				fmt.Print(table.String())
				if !add {
					return nil
				}
				for _, s := range suggestions {
					if _, err := a.ws.Tasks.Create(ctx, s.Draft()); err != nil {
						return err
					}
				}
				fmt.Printf("Added %d tasks\n", len(suggestions))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&add, "add", false, "Create every suggested task")
	return cmd
}

func suggestHabitsCmd() *cobra.Command {
	var add bool
	cmd := &cobra.Command{
		Use:   "habits [goals]",
		Short: "Recommend new habits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				recs, err := aiClient(a).HabitRecommendations(ctx, strings.Join(args, " "), a.ws.Habits.List(), a.ws.Habits.Completions())
				if err != nil {
					return err
				}
				table := ui.NewTableBuilder([]string{"#", "NAME", "FREQUENCY", "BENEFIT"}, len(recs))
				for i, r := range recs {
					table.AddRow(strconv.Itoa(i+1), ui.Truncate(r.Name), string(r.Frequency), ui.Truncate(r.Benefit))
				}
				fmt.Print(table.String())
				if !add {
					return nil
				}
				for _, r := range recs {
					if _, err := a.ws.Habits.Create(ctx, r.Draft()); err != nil {
						return err
					}
				}
				fmt.Printf("Added %d habits\n", len(recs))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&add, "add", false, "Create every recommended habit")
	return cmd
}

func suggestInsightsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Summarize productivity over a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				now := time.Now().In(a.cfg.Location)
				summary := derive.Summarize(a.ws.Tasks.List(), a.ws.Habits.List(), a.ws.Habits.Completions(), days, now)
				insights, err := aiClient(a).ProductivityInsights(ctx, summary)
				if err != nil {
					return err
				}
				fmt.Println(insights.Summary)
				printList("Strengths", insights.Strengths)
				printList("Improvements", insights.Improvements)
				printList("Recommendations", insights.Recommendations)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Window in days")
	return cmd
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(ui.Header(title))
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit delivery preferences",
	}
	cmd.AddCommand(profileShowCmd(), profilePrefsCmd(), profileDeviceCmd())
	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the signed-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				p, err := a.profiles.Get(ctx, a.userID())
				if err != nil {
					return err
				}
				telegram := ui.Muted("not linked")
				if p.TelegramChatID != nil {
					telegram = strconv.FormatInt(*p.TelegramChatID, 10)
				}
				device := ui.Muted("none")
				if p.FCMToken != "" {
					device = ui.Truncate(p.FCMToken)
				}
				fmt.Print(ui.FormatTable([]string{"FIELD", "VALUE"}, [][]string{
					{"id", p.ID},
					{"name", p.DisplayName()},
					{"email", p.Email},
					{"email reminders", strconv.FormatBool(p.NotifyEmail)},
					{"push reminders", strconv.FormatBool(p.NotifyPush)},
					{"telegram", telegram},
					{"push device", device},
				}))
				return nil
			})
		},
	}
}

func profilePrefsCmd() *cobra.Command {
	var email, push bool
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Choose how task reminders are delivered",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				p, err := a.profiles.Get(ctx, a.userID())
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("email") {
					email = p.NotifyEmail
				}
				if !cmd.Flags().Changed("push") {
					push = p.NotifyPush
				}
				if err := a.profiles.SetPreferences(ctx, p.ID, email, push); err != nil {
					return err
				}
				fmt.Printf("email reminders %t, push reminders %t\n", email, push)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&email, "email", true, "Send reminder emails")
	cmd.Flags().BoolVar(&push, "push", true, "Send reminder push notifications")
	return cmd
}

func profileDeviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "device [fcm-token]",
		Short: "Register the device token used for push notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.profiles.SetFCMToken(ctx, a.userID(), strings.TrimSpace(args[0])); err != nil {
					return err
				}
				fmt.Println("Device registered")
				return nil
			})
		},
	}
}
