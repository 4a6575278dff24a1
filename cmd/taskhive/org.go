package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"taskhive/internal/model"
	"taskhive/internal/ui"
)

func orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "org",
		Aliases: []string{"orgs"},
		Short:   "Manage organizations",
	}
	cmd.AddCommand(orgListCmd(), orgCreateCmd(), orgJoinCmd(), orgMembersCmd(), orgLeaveCmd(), orgKickCmd())
	return cmd
}

func orgListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List organizations you belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				orgs := a.ws.Organizations.List()
				table := ui.NewTableBuilder([]string{"ID", "NAME", "INVITE", "OWNER"}, len(orgs))
				for _, o := range orgs {
					owner := ui.Muted("member")
					if o.OwnerID == a.userID() {
						owner = "you"
					}
					table.AddRow(shortID(o.ID), ui.Truncate(o.Name), o.InviteCode, owner)
				}
				fmt.Print(table.String())
				return nil
			})
		},
	}
}

func orgCreateCmd() *cobra.Command {
	var draft model.OrganizationDraft
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				draft.Name = args[0]
				org, err := a.ws.Organizations.Create(ctx, draft)
				if err != nil {
					return err
				}
				fmt.Printf("Created %s, invite code %s\n", org.Name, org.InviteCode)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&draft.Description, "description", "d", "", "Description")
	return cmd
}

func orgJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join [code]",
		Short: "Join an organization with its invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				org, err := a.ws.Organizations.Join(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Joined %s\n", org.Name)
				return nil
			})
		},
	}
}

func orgMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members [org]",
		Short: "List members of an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				org, err := resolve(a.ws.Organizations.List(), args[0])
				if err != nil {
					return err
				}
				members, err := a.ws.Organizations.Members(ctx, org.ID)
				if err != nil {
					return err
				}
				table := ui.NewTableBuilder([]string{"USER", "NAME", "ROLE", "JOINED"}, len(members))
				for _, m := range members {
					name := ui.Muted("-")
					if p, err := a.profiles.Get(ctx, m.UserID); err == nil {
						name = p.DisplayName()
					}
					table.AddRow(m.UserID, ui.Truncate(name), string(m.Role), m.JoinedAt.In(a.cfg.Location).Format("2006-01-02"))
				}
				fmt.Print(table.String())
				return nil
			})
		},
	}
}

func orgLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave [org]",
		Short: "Leave an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				org, err := resolve(a.ws.Organizations.List(), args[0])
				if err != nil {
					return err
				}
				if err := a.ws.Organizations.Leave(ctx, org.ID); err != nil {
					return err
				}
				fmt.Printf("Left %s\n", org.Name)
				return nil
			})
		},
	}
}

func orgKickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kick [org] [user-id]",
		Short: "Remove a member from an organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				org, err := resolve(a.ws.Organizations.List(), args[0])
				if err != nil {
					return err
				}
				if err := a.ws.Organizations.RemoveMember(ctx, org.ID, args[1]); err != nil {
					return err
				}
				fmt.Printf("Removed %s from %s\n", args[1], org.Name)
				return nil
			})
		},
	}
}
