package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"taskhive/internal/model"
	"taskhive/internal/ui"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(taskListCmd(), taskAddCmd(), taskEditCmd(), taskDoneCmd(), taskToggleCmd(), taskRemoveCmd())
	return cmd
}

func taskListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				tasks := a.ws.Tasks.List()
				sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })

				table := ui.NewTableBuilder([]string{"ID", "TITLE", "STATUS", "PRIORITY", "DUE", "SCOPE"}, len(tasks))
				for _, t := range tasks {
					if !all && t.Completed() {
						continue
					}
					table.AddRow(shortID(t.ID), ui.Truncate(t.Title), ui.Status(t.Status), ui.Priority(t.Priority),
						formatDue(t.DueDate, a.cfg.Location), taskScope(t, a.userID()))
				}
				fmt.Print(table.String())
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include completed tasks")
	return cmd
}

func taskScope(t model.Task, me string) string {
	switch {
	case t.Organization() != "":
		return ui.Muted("org " + shortID(t.Organization()))
	case t.OwnerID != me:
		return ui.Muted("assigned")
	default:
		return ui.Muted("personal")
	}
}

type taskFlags struct {
	description string
	priority    string
	status      string
	category    string
	due         string
	assignee    string
	org         string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", "", "Priority (low, medium, high)")
	cmd.Flags().StringVar(&f.category, "category", "", "Category")
	cmd.Flags().StringVar(&f.due, "due", "", "Due date, YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"")
	cmd.Flags().StringVar(&f.assignee, "assign", "", "Assignee user id")
}

func taskAddCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				draft := model.TaskDraft{
					Title:       args[0],
					Description: f.description,
					Priority:    model.Priority(f.priority),
					Category:    f.category,
					AssigneeID:  f.assignee,
				}
				if f.due != "" {
					due, err := parseDue(f.due, a.cfg.Location)
					if err != nil {
						return err
					}
					draft.DueDate = &due
				}
				if f.org != "" {
					org, err := resolve(a.ws.Organizations.List(), f.org)
					if err != nil {
						return err
					}
					draft.OrganizationID = org.ID
				}
				task, err := a.ws.Tasks.Create(ctx, draft)
				if err != nil {
					return err
				}
				fmt.Printf("Created task %s\n", shortID(task.ID))
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.org, "org", "", "Organization id")
	return cmd
}

func taskEditCmd() *cobra.Command {
	var f taskFlags
	var title string
	var clearDue bool
	cmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Update fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				task, err := resolve(a.ws.Tasks.List(), args[0])
				if err != nil {
					return err
				}

				var patch model.TaskPatch
				flags := cmd.Flags()
				if flags.Changed("title") {
					patch.Title = &title
				}
				if flags.Changed("description") {
					patch.Description = &f.description
				}
				if flags.Changed("priority") {
					p := model.Priority(f.priority)
					patch.Priority = &p
				}
				if flags.Changed("status") {
					s := model.TaskStatus(f.status)
					patch.Status = &s
				}
				if flags.Changed("category") {
					patch.Category = &f.category
				}
				if flags.Changed("assign") {
					patch.AssigneeID = &f.assignee
				}
				switch {
				case clearDue:
					patch.ClearDueDate = true
				case f.due != "":
					due, err := parseDue(f.due, a.cfg.Location)
					if err != nil {
						return err
					}
					patch.DueDate = &due
				}

				updated, err := a.ws.Tasks.Update(ctx, task.ID, patch)
				if err != nil {
					return err
				}
				fmt.Printf("Updated task %s (%s)\n", shortID(updated.ID), updated.Status)
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title")
	cmd.Flags().StringVarP(&f.status, "status", "s", "", "Status (pending, in_progress, completed)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done [id]",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				task, err := resolve(a.ws.Tasks.List(), args[0])
				if err != nil {
					return err
				}
				status := model.StatusCompleted
				if _, err := a.ws.Tasks.Update(ctx, task.ID, model.TaskPatch{Status: &status}); err != nil {
					return err
				}
				fmt.Printf("Completed %q\n", task.Title)
				return nil
			})
		},
	}
}

func taskToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [id]",
		Short: "Flip a task between completed and pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				task, err := resolve(a.ws.Tasks.List(), args[0])
				if err != nil {
					return err
				}
				updated, err := a.ws.Tasks.ToggleStatus(ctx, task.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%q is now %s\n", updated.Title, updated.Status)
				return nil
			})
		},
	}
}

func taskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id]",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				task, err := resolve(a.ws.Tasks.List(), args[0])
				if err != nil {
					return err
				}
				if err := a.ws.Tasks.Remove(ctx, task.ID); err != nil {
					return err
				}
				fmt.Printf("Deleted %q\n", task.Title)
				return nil
			})
		},
	}
}
