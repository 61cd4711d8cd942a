package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostStatus is the lifecycle state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// ForumSection is one of the fixed forum categories.
type ForumSection string

const (
	SectionLand       ForumSection = "land"
	SectionResources  ForumSection = "resources"
	SectionPeople     ForumSection = "people"
	SectionFacilities ForumSection = "facilities"
	SectionOperations ForumSection = "operations"
	SectionOwnership  ForumSection = "ownership"
)

// ForumSections lists every section in display order.
var ForumSections = []ForumSection{
	SectionLand,
	SectionResources,
	SectionPeople,
	SectionFacilities,
	SectionOperations,
	SectionOwnership,
}

// SectionInfo describes a section for clients building navigation.
type SectionInfo struct {
	Key         ForumSection `json:"key"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
}

// SectionRegistry is served by the config endpoint, in ForumSections order.
var SectionRegistry = []SectionInfo{
	{SectionLand, "Land", "Plots, soil, planting and land stewardship"},
	{SectionResources, "Resources", "Tools, materials, water and shared supplies"},
	{SectionPeople, "People", "Introductions, skills and community roles"},
	{SectionFacilities, "Facilities", "Buildings, workshops and common spaces"},
	{SectionOperations, "Operations", "Schedules, chores and day-to-day running"},
	{SectionOwnership, "Ownership", "Shares, governance and legal structure"},
}

// Valid reports whether s belongs to the section registry.
func (s ForumSection) Valid() bool {
	for _, known := range ForumSections {
		if s == known {
			return true
		}
	}
	return false
}

// Post represents a forum post created by a user.
// Upvotes and Downvotes are a projection of the votes table and are only
// written by the vote recount.
type Post struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	AuthorID     string       `gorm:"index;size:36;not null" json:"author_id"`
	Title        string       `gorm:"size:255;not null" json:"title"`
	Content      string       `gorm:"type:text;not null" json:"content"`
	ForumSection ForumSection `gorm:"index;size:32;not null" json:"forum_section"`
	Status       PostStatus   `gorm:"index;size:16;not null;default:'draft'" json:"status"`
	Upvotes      int64        `gorm:"not null;default:0" json:"upvotes"`
	Downvotes    int64        `gorm:"not null;default:0" json:"downvotes"`
	CreatedAt    time.Time    `json:"created_at"`
	PublishedAt  *time.Time   `json:"published_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsPublished reports whether the post is publicly visible.
func (p Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}
