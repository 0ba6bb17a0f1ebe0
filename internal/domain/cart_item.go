package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// NullString is a patch field that tells an explicit null apart from a
// field that was not sent at all.
type NullString struct {
	Value *string
	Set   bool
}

func Some(s string) NullString { return NullString{Value: &s, Set: true} }

func Null() NullString { return NullString{Set: true} }

func (n *NullString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// Patch is a partial update of an item's scheduling fields.
type Patch struct {
	EventDate       NullString `json:"event_date"`
	EventTime       NullString `json:"event_time"`
	EventLocation   NullString `json:"event_location"`
	HasEventDetails *bool      `json:"has_event_details"`
}

func NewCartItem(id ItemID, svc Service, d EventDetails, now time.Time) CartItem {
	item := CartItem{
		ID:        id,
		Service:   svc,
		AddedAt:   now,
		UpdatedAt: now,
	}
	item.Schedule(d, now)
	return item
}

// Schedule overwrites all scheduling fields.
func (it *CartItem) Schedule(d EventDetails, now time.Time) {
	it.EventDate = clean(d.Date)
	it.EventTime = clean(d.Time)
	it.EventLocation = clean(d.Location)
	it.normalize()
	it.HasEventDetails = it.deriveHasEventDetails()
	it.UpdatedAt = now
}

// Apply merges the fields present in p. An explicit has_event_details in the
// patch is kept as sent; otherwise the flag is derived again.
func (it *CartItem) Apply(p Patch, now time.Time) {
	if p.EventDate.Set {
		it.EventDate = clean(p.EventDate.Value)
	}
	if p.EventTime.Set {
		it.EventTime = clean(p.EventTime.Value)
	}
	if p.EventLocation.Set {
		it.EventLocation = clean(p.EventLocation.Value)
	}
	it.normalize()
	if p.HasEventDetails != nil {
		it.HasEventDetails = *p.HasEventDetails
	} else {
		it.HasEventDetails = it.deriveHasEventDetails()
	}
	it.UpdatedAt = now
}

func (it CartItem) IsAudio() bool {
	return strings.EqualFold(strings.TrimSpace(it.Service.Category), CategoryAudio)
}

func (it *CartItem) normalize() {
	if it.IsAudio() {
		it.EventLocation = nil
	}
}

func (it CartItem) deriveHasEventDetails() bool {
	if it.EventDate == nil || it.EventTime == nil {
		return false
	}
	return it.IsAudio() || it.EventLocation != nil
}

func clean(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
