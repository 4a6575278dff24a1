package model

import (
	"strings"
	"time"
)

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// InviteCodeLength is the length of generated invite codes.
const InviteCodeLength = 8

// Organization is a team workspace. InviteCode is stored uppercase.
type Organization struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`
	InviteCode  string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"invite_code"`
	OwnerID     string    `gorm:"type:varchar(36);index;not null" json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (o Organization) RowID() string { return o.ID }

func (o Organization) Supersedes(old Organization) bool { return !o.UpdatedAt.Before(old.UpdatedAt) }

// NormalizeInviteCode is applied on every write and lookup.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type OrganizationDraft struct {
	Name        string `json:"name" validate:"required,notblank"`
	Description string `json:"description,omitempty"`
}

type OrganizationPatch struct {
	Name        *string `validate:"omitempty,min=1,notblank"`
	Description *string
}

func (p OrganizationPatch) Columns() map[string]any {
	cols := make(map[string]any)
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	return cols
}

// OrganizationMember rows are the only signal that an identity belongs to an
// organization.
type OrganizationMember struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrganizationID string     `gorm:"type:varchar(36);uniqueIndex:idx_org_member;not null" json:"organization_id"`
	UserID         string     `gorm:"type:varchar(36);uniqueIndex:idx_org_member;index;not null" json:"user_id"`
	Role           MemberRole `gorm:"type:varchar(16);default:member" json:"role"`
	JoinedAt       time.Time  `gorm:"autoCreateTime" json:"joined_at"`
}

func (m OrganizationMember) RowID() string { return m.ID }

func (m OrganizationMember) Supersedes(OrganizationMember) bool { return true }
