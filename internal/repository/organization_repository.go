package repository

import (
	"context"

	"gorm.io/gorm"

	"taskhive/internal/model"
)

// OrganizationRepository handles organizations.
type OrganizationRepository struct {
	table[model.Organization]
}

func NewOrganizationRepository(db *gorm.DB, feed Publisher) *OrganizationRepository {
	return &OrganizationRepository{table: newTable[model.Organization](db, TableOrganizations, feed)}
}

// ListForMember returns the organizations userID belongs to, newest first.
func (r *OrganizationRepository) ListForMember(ctx context.Context, userID string) ([]model.Organization, error) {
	memberOf := r.db.Model(&model.OrganizationMember{}).Select("organization_id").Where("user_id = ?", userID)
	return r.list(ctx, "created_at DESC", "id IN (?)", memberOf)
}

func (r *OrganizationRepository) Get(ctx context.Context, id string) (model.Organization, error) {
	return r.get(ctx, id)
}

// FindByInviteCode looks the code up after normalization.
func (r *OrganizationRepository) FindByInviteCode(ctx context.Context, code string) (model.Organization, error) {
	var org model.Organization
	err := r.db.WithContext(ctx).Where("invite_code = ?", model.NormalizeInviteCode(code)).First(&org).Error
	return org, wrap("find organization by invite code", err)
}

func (r *OrganizationRepository) Insert(ctx context.Context, org *model.Organization) (model.Organization, error) {
	return r.insert(ctx, org)
}

func (r *OrganizationRepository) Update(ctx context.Context, id string, cols map[string]any) (model.Organization, error) {
	return r.update(ctx, id, cols)
}

// Delete removes the organization and its memberships.
func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	members := newTable[model.OrganizationMember](r.db, TableMembers, r.feed)
	if _, err := members.removeWhere(ctx, "organization_id = ?", id); err != nil {
		return err
	}
	return r.remove(ctx, id)
}

// MemberRepository handles organization memberships.
type MemberRepository struct {
	table[model.OrganizationMember]
}

func NewMemberRepository(db *gorm.DB, feed Publisher) *MemberRepository {
	return &MemberRepository{table: newTable[model.OrganizationMember](db, TableMembers, feed)}
}

func (r *MemberRepository) List(ctx context.Context, organizationID string) ([]model.OrganizationMember, error) {
	return r.list(ctx, "joined_at ASC", "organization_id = ?", organizationID)
}

// Find returns the membership of userID in organizationID, or a CodeNotFound
// error.
func (r *MemberRepository) Find(ctx context.Context, organizationID, userID string) (model.OrganizationMember, error) {
	var member model.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&member).Error
	return member, wrap("find member", err)
}

func (r *MemberRepository) Add(ctx context.Context, organizationID, userID string, role model.MemberRole) (model.OrganizationMember, error) {
	return r.insert(ctx, &model.OrganizationMember{
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           role,
	})
}

// Remove deletes the membership. Returns the removed row and whether one
// existed.
func (r *MemberRepository) Remove(ctx context.Context, organizationID, userID string) (model.OrganizationMember, bool, error) {
	member, err := r.Find(ctx, organizationID, userID)
	if IsNotFound(err) {
		return member, false, nil
	}
	if err != nil {
		return member, false, err
	}
	if err := r.remove(ctx, member.ID); err != nil {
		return member, false, err
	}
	return member, true, nil
}
