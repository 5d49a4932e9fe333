package model

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

// GiftMapItem is one gift idea. ReservedAt is set exactly when IsReserved is true.
type GiftMapItem struct {
	ID         string     `json:"id"`                    // immutable item ID
	Name       string     `json:"name"`                  // display name
	URL        string     `json:"url,omitempty"`         // product link
	Notes      string     `json:"notes,omitempty"`       // free text
	IsReserved bool       `json:"is_reserved"`           // claimed by a viewer
	ReservedAt *time.Time `json:"reserved_at,omitempty"` // when the claim was made
	Order      int        `json:"order"`                 // insertion index, gaps allowed
}

// SetReserved toggles reservation state and keeps ReservedAt consistent.
// It reports whether anything changed.
func (i *GiftMapItem) SetReserved(reserved bool, now time.Time) bool {
	if i.IsReserved == reserved {
		return false
	}
	i.IsReserved = reserved
	if reserved {
		t := now.UTC()
		i.ReservedAt = &t
	} else {
		i.ReservedAt = nil
	}
	return true
}

// GiftMapItems is stored as a single JSON document column.
type GiftMapItems []GiftMapItem

// Clone returns a deep copy.
func (items GiftMapItems) Clone() GiftMapItems {
	out := make(GiftMapItems, len(items))
	for i, item := range items {
		out[i] = item
		if item.ReservedAt != nil {
			t := *item.ReservedAt
			out[i].ReservedAt = &t
		}
	}
	return out
}

// IndexOf returns the position of the item with id, or -1.
func (items GiftMapItems) IndexOf(id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// Sorted returns a copy ordered by Order.
func (items GiftMapItems) Sorted() GiftMapItems {
	out := items.Clone()
	sort.SliceStable(out, func(a, b int) bool { return out[a].Order < out[b].Order })
	return out
}

// GiftMap is the owner's private list of gift ideas for one person.
// ShareToken is non-nil exactly when IsShared is true.
type GiftMap struct {
	OwnerID    string       `gorm:"primaryKey;type:varchar(128)" json:"owner_id"`        // owner ID
	PersonID   string       `gorm:"primaryKey;type:varchar(64)" json:"person_id"`        // person ID
	PersonName string       `gorm:"not null" json:"person_name"`                         // name copied at creation
	ShareToken *string      `gorm:"type:varchar(64);uniqueIndex" json:"share_token"`     // public token
	IsShared   bool         `gorm:"not null" json:"is_shared"`                           // sharing enabled
	Items      GiftMapItems `gorm:"type:text;serializer:json;not null" json:"items"`     // gift ideas
	Version    int64        `gorm:"not null" json:"-"`                                   // compare-and-swap counter
	CreatedAt  time.Time    `json:"created_at"`                                          // created
	UpdatedAt  time.Time    `json:"updated_at"`                                          // last mutation
}

func (GiftMap) TableName() string {
	return "gift_maps"
}

func (m *GiftMap) AfterFind(tx *gorm.DB) error {
	if m.Items == nil {
		m.Items = GiftMapItems{}
	}
	return nil
}

// SharedGiftMap is the public projection of a GiftMap, keyed by share token.
// OwnerID and GiftMapID are back-references and are never rendered to viewers.
type SharedGiftMap struct {
	ShareToken string       `gorm:"primaryKey;type:varchar(64)" json:"-"`
	OwnerID    string       `gorm:"type:varchar(128);not null;index:idx_shared_gift_maps_owner" json:"-"`
	GiftMapID  string       `gorm:"type:varchar(64);not null;index:idx_shared_gift_maps_owner" json:"-"`
	PersonName string       `gorm:"not null" json:"person_name"`
	Items      GiftMapItems `gorm:"type:text;serializer:json;not null" json:"items"`
	ExpiresAt  *time.Time   `json:"expires_at"` // unused, always nil
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (SharedGiftMap) TableName() string {
	return "shared_gift_maps"
}

func (s *SharedGiftMap) AfterFind(tx *gorm.DB) error {
	if s.Items == nil {
		s.Items = GiftMapItems{}
	}
	return nil
}

// PublicGiftMap is the only shape returned to share-link viewers.
type PublicGiftMap struct {
	PersonName string       `json:"person_name"`
	Items      GiftMapItems `json:"items"`
	ExpiresAt  *time.Time   `json:"expires_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Public renders the viewer-facing view with items in display order.
func (s *SharedGiftMap) Public() *PublicGiftMap {
	return &PublicGiftMap{
		PersonName: s.PersonName,
		Items:      s.Items.Sorted(),
		ExpiresAt:  s.ExpiresAt,
		UpdatedAt:  s.UpdatedAt,
	}
}
