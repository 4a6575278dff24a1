package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewID returns a time-ordered UUID.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	return nil
}

func (h *Habit) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = NewID()
	}
	return nil
}

func (c *HabitCompletion) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}

func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = NewID()
	}
	o.InviteCode = NormalizeInviteCode(o.InviteCode)
	return nil
}

func (m *OrganizationMember) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = NewID()
	}
	return nil
}

func (r *TaskReminder) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	return nil
}

func (p *Profile) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}
