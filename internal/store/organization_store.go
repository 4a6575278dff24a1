package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"

	"taskhive/internal/events"
	"taskhive/internal/model"
	"taskhive/internal/realtime"
	"taskhive/internal/repository"
)

// inviteAlphabet leaves out 0/O and 1/I.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxInviteAttempts = 5

// NewInviteCode returns a random uppercase invite code.
func NewInviteCode() (string, error) {
	code := make([]byte, model.InviteCodeLength)
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		code[i] = inviteAlphabet[n.Int64()]
	}
	return string(code), nil
}

// OrganizationStore mirrors the organizations the current identity belongs
// to.
type OrganizationStore struct {
	orgs    *Collection[model.Organization]
	backend OrganizationBackend
	members MemberBackend
	feed    Feed
	events  EventPublisher
	ids     Identity
	codes   func() (string, error)

	loading loading
	subs    subscriptions
}

func NewOrganizationStore(backend OrganizationBackend, members MemberBackend, feed Feed, bus EventPublisher, ids Identity) *OrganizationStore {
	if bus == nil {
		bus = nopPublisher{}
	}
	return &OrganizationStore{
		orgs:    NewCollection[model.Organization](),
		backend: backend,
		members: members,
		feed:    feed,
		events:  bus,
		ids:     ids,
		codes:   NewInviteCode,
	}
}

func (s *OrganizationStore) Fetch(ctx context.Context) error {
	defer s.loading.begin()()
	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	since := s.orgs.Mark()
	rows, err := s.backend.ListForMember(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("fetch organizations: %w", err)
	}
	s.orgs.Apply(Event[model.Organization]{Kind: Reset, Rows: rows, Since: since})
	return nil
}

func (s *OrganizationStore) List() []model.Organization { return s.orgs.List() }

func (s *OrganizationStore) Get(id string) (model.Organization, bool) { return s.orgs.Get(id) }

func (s *OrganizationStore) Loading() bool { return s.loading.active() }

func (s *OrganizationStore) Watch(fn func([]model.Organization)) (unwatch func()) {
	return s.orgs.Watch(fn)
}

// IsMember reports whether the organization is in the local collection.
func (s *OrganizationStore) IsMember(organizationID string) bool {
	_, ok := s.orgs.Get(organizationID)
	return ok
}

// Create inserts the organization with a fresh invite code and makes the
// caller its owner. A colliding invite code is regenerated a bounded number
// of times.
func (s *OrganizationStore) Create(ctx context.Context, draft model.OrganizationDraft) (model.Organization, error) {
	if err := check(draft); err != nil {
		return model.Organization{}, err
	}
	id, err := s.ids.Identity()
	if err != nil {
		return model.Organization{}, err
	}

	var created model.Organization
	inserted := false
	for attempt := 1; attempt <= maxInviteAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return model.Organization{}, err
		}
		row := model.Organization{
			Name:        draft.Name,
			Description: draft.Description,
			InviteCode:  code,
			OwnerID:     id.UserID,
		}
		created, err = s.backend.Insert(ctx, &row)
		if repository.IsConflict(err) {
			log.Printf("[warn] organizations: invite code collision, attempt %d/%d", attempt, maxInviteAttempts)
			continue
		}
		if err != nil {
			return model.Organization{}, fmt.Errorf("create organization: %w", err)
		}
		inserted = true
		break
	}
	if !inserted {
		return model.Organization{}, ErrInviteCodeExhausted
	}

	if _, err := s.members.Add(ctx, created.ID, id.UserID, model.RoleOwner); err != nil {
		// an organization without its owner is unreachable
		if delErr := s.backend.Delete(ctx, created.ID); delErr != nil {
			log.Printf("[error] organizations: rollback of %s failed: %v", created.ID, delErr)
		}
		return model.Organization{}, fmt.Errorf("add organization owner: %w", err)
	}
	s.orgs.Apply(Event[model.Organization]{Kind: ConfirmedInsert, Row: created})
	return created, nil
}

// Join adds the caller to the organization with the invite code.
func (s *OrganizationStore) Join(ctx context.Context, code string) (model.Organization, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return model.Organization{}, err
	}
	code = model.NormalizeInviteCode(code)
	if code == "" {
		return model.Organization{}, fmt.Errorf("%w: invite code is required", ErrValidation)
	}
	org, err := s.backend.FindByInviteCode(ctx, code)
	if repository.IsNotFound(err) {
		return model.Organization{}, ErrInviteNotFound
	}
	if err != nil {
		return model.Organization{}, fmt.Errorf("join organization: %w", err)
	}

	_, err = s.members.Find(ctx, org.ID, id.UserID)
	switch {
	case err == nil:
		return model.Organization{}, ErrAlreadyMember
	case !repository.IsNotFound(err):
		return model.Organization{}, fmt.Errorf("join organization: %w", err)
	}

	member, err := s.members.Add(ctx, org.ID, id.UserID, model.RoleMember)
	if repository.IsConflict(err) {
		return model.Organization{}, ErrAlreadyMember
	}
	if err != nil {
		return model.Organization{}, fmt.Errorf("join organization: %w", err)
	}
	s.orgs.Apply(Event[model.Organization]{Kind: ConfirmedInsert, Row: org})
	s.events.Publish(events.Event{Kind: events.MemberJoined, ActorID: id.UserID, Organization: &org, Member: &member})
	return org, nil
}

// Leave removes the caller's own membership.
func (s *OrganizationStore) Leave(ctx context.Context, organizationID string) error {
	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	if org, ok := s.orgs.Get(organizationID); ok && org.OwnerID == id.UserID {
		return fmt.Errorf("%w: the owner cannot leave, delete the organization instead", ErrValidation)
	}
	if _, _, err := s.members.Remove(ctx, organizationID, id.UserID); err != nil {
		return fmt.Errorf("leave organization: %w", err)
	}
	return s.Fetch(ctx)
}

// RemoveMember removes userID from the organization. Removing someone who is
// not a member is not an error.
func (s *OrganizationStore) RemoveMember(ctx context.Context, organizationID, userID string) error {
	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	if userID == id.UserID {
		return s.Leave(ctx, organizationID)
	}
	member, existed, err := s.members.Remove(ctx, organizationID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if !existed {
		return nil
	}
	org, ok := s.orgs.Get(organizationID)
	if !ok {
		org, err = s.backend.Get(ctx, organizationID)
		if err != nil {
			org = model.Organization{ID: organizationID}
		}
	}
	s.events.Publish(events.Event{Kind: events.MemberRemoved, ActorID: id.UserID, Organization: &org, Member: &member})
	return nil
}

// Members lists the memberships of an organization straight from the
// backend.
func (s *OrganizationStore) Members(ctx context.Context, organizationID string) ([]model.OrganizationMember, error) {
	if _, err := s.ids.Identity(); err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *OrganizationStore) Update(ctx context.Context, organizationID string, patch model.OrganizationPatch) (model.Organization, error) {
	if err := check(patch); err != nil {
		return model.Organization{}, err
	}
	if _, err := s.ids.Identity(); err != nil {
		return model.Organization{}, err
	}
	updated, err := s.backend.Update(ctx, organizationID, patch.Columns())
	if repository.IsNotFound(err) {
		return model.Organization{}, fmt.Errorf("update organization: %w", ErrNotFound)
	}
	if err != nil {
		return model.Organization{}, fmt.Errorf("update organization: %w", err)
	}
	s.orgs.Apply(Event[model.Organization]{Kind: ConfirmedUpdate, Row: updated})
	return updated, nil
}

// Delete removes the organization with all memberships.
func (s *OrganizationStore) Delete(ctx context.Context, organizationID string) error {
	if _, err := s.ids.Identity(); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, organizationID); err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	s.orgs.Apply(Event[model.Organization]{Kind: ConfirmedDelete, ID: organizationID})
	return nil
}

// Subscribe follows organization rows the caller holds and the caller's own
// membership rows.
func (s *OrganizationStore) Subscribe() {
	s.subs.open(func() []func() {
		return []func(){
			s.feed.Subscribe(repository.TableOrganizations, s.held, func(ch realtime.Change) {
				if ev, ok := feedEvent[model.Organization](ch); ok {
					s.orgs.Apply(ev)
				}
			}),
			s.feed.Subscribe(repository.TableMembers, s.ownMembership, s.onMembership),
		}
	})
}

func (s *OrganizationStore) Unsubscribe() { s.subs.stop() }

func (s *OrganizationStore) Close() {
	s.subs.stop()
	s.orgs.Clear()
}

func (s *OrganizationStore) held(ch realtime.Change) bool {
	row, ok := ch.New.(model.Organization)
	if !ok {
		row, ok = ch.Old.(model.Organization)
	}
	return ok && s.IsMember(row.ID)
}

func (s *OrganizationStore) ownMembership(ch realtime.Change) bool {
	row, ok := ch.New.(model.OrganizationMember)
	if !ok {
		row, ok = ch.Old.(model.OrganizationMember)
	}
	return ok && row.UserID != "" && row.UserID == currentUser(s.ids)
}

// onMembership adds an organization when the caller is added elsewhere and
// reloads the list when the caller is removed. Removal reloads rather than
// deletes so a later rejoin is not blocked.
func (s *OrganizationStore) onMembership(ch realtime.Change) {
	ctx := context.Background()
	switch ch.Type {
	case realtime.Insert:
		member, ok := ch.New.(model.OrganizationMember)
		if !ok {
			return
		}
		org, err := s.backend.Get(ctx, member.OrganizationID)
		if err != nil {
			log.Printf("organizations: load %s after join: %v", member.OrganizationID, err)
			return
		}
		s.orgs.Apply(Event[model.Organization]{Kind: FeedInsert, Row: org})
	case realtime.Delete:
		if err := s.Fetch(ctx); err != nil {
			log.Printf("organizations: reload after removal: %v", err)
		}
	}
}
