package model

import (
	"sort"
	"time"
)

// Attachment is a file or image linked from a message
type Attachment struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

const (
	// AttachmentKindImage is used for image URLs delivered without an explicit kind
	AttachmentKindImage = "image"
	AttachmentKindFile  = "file"
)

// Message is one chat message as delivered by a backing source.
// ID and SentAt are optional; a zero SentAt means the source did not provide one.
type Message struct {
	ID          string       `json:"id,omitempty"`
	Author      string       `json:"author"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
	SentAt      time.Time    `json:"sent_at,omitzero"`
}

// MessageKey identifies a message for deduplication
type MessageKey struct {
	id     string
	author string
	body   string
}

// Key returns the dedup identity: the source ID when present, else (author, body)
func (m *Message) Key() MessageKey {
	if m.ID != "" {
		return MessageKey{id: m.ID}
	}
	return MessageKey{author: m.Author, body: m.Body}
}

// String renders the key for storage backends that index by text
func (k MessageKey) String() string {
	if k.id != "" {
		return "id:" + k.id
	}
	return "ab:" + k.author + "\x00" + k.body
}

// HasSentAt reports whether the source provided a timestamp
func (m *Message) HasSentAt() bool {
	return !m.SentAt.IsZero()
}

// OrderPolicy decides how merged message lists are ordered
type OrderPolicy string

const (
	// OrderSentAt sorts by SentAt when every message has one, else keeps arrival order
	OrderSentAt OrderPolicy = "sent_at"
	// OrderArrival keeps the concatenation order of the merged lists
	OrderArrival OrderPolicy = "arrival"
)

// Validate checks the policy is known
func (p OrderPolicy) Validate() bool {
	return p == OrderSentAt || p == OrderArrival
}

// MergeMessages concatenates lists in the given order and drops duplicates, keeping the
// first occurrence. Callers pass lists in chronological range order.
func MergeMessages(policy OrderPolicy, lists ...[]*Message) []*Message {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[MessageKey]struct{}, total)
	merged := make([]*Message, 0, total)
	allTimed := true
	for _, l := range lists {
		for _, msg := range l {
			if msg == nil {
				continue
			}
			key := msg.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, msg)
			if !msg.HasSentAt() {
				allTimed = false
			}
		}
	}

	if policy == OrderSentAt && allTimed {
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].SentAt.Before(merged[j].SentAt)
		})
	}

	return merged
}

// FilterMessages keeps messages whose SentAt lies within r. Messages without a
// timestamp cannot be placed and are kept.
func FilterMessages(msgs []*Message, r DateRange) []*Message {
	filtered := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.HasSentAt() && !r.Includes(msg.SentAt) {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}
