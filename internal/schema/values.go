package schema

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	imageSourcePattern = regexp.MustCompile(`(?is)<img.*?src="(.*?)".*?>`)
	anchorPattern      = regexp.MustCompile(`(?is)<a.*?href="(.*?)".*?>(.*?)</a>`)
)

// RichText is the canonical form of a rich text field.
type RichText struct {
	Value       string   `json:"value"`
	Attachments []string `json:"attachments,omitempty"`
}

// ParseRichText extracts the image sources embedded in markup.
// Empty sources are dropped.
func ParseRichText(markup string) RichText {
	rt := RichText{Value: markup}
	for _, m := range imageSourcePattern.FindAllStringSubmatch(markup, -1) {
		if m[1] != "" {
			rt.Attachments = append(rt.Attachments, m[1])
		}
	}
	return rt
}

// RawValue returns the markup written back to providers.
func (r RichText) RawValue() any { return r.Value }

// LinkEntry points at the counterpart of a record in another system.
type LinkEntry struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SyncStatus is the canonical form of the marker stored on a record that
// links it to its counterparts.
type SyncStatus struct {
	Value   string      `json:"value"`
	Entries []LinkEntry `json:"entries,omitempty"`
}

// ParseSyncStatus reads anchors from marker markup in document order.
// Each anchor's text is the counterpart id and its href the counterpart URL.
func ParseSyncStatus(markup string) SyncStatus {
	s := SyncStatus{Value: markup}
	for _, m := range anchorPattern.FindAllStringSubmatch(markup, -1) {
		s.Entries = append(s.Entries, LinkEntry{
			ID:  html.UnescapeString(m[2]),
			URL: html.UnescapeString(m[1]),
		})
	}
	return s
}

// NewSyncStatus builds a marker from entries and renders its markup, so
// the marker survives a write and a later ParseSyncStatus unchanged.
func NewSyncStatus(entries ...LinkEntry) SyncStatus {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, html.EscapeString(e.URL), html.EscapeString(e.ID))
	}
	return SyncStatus{Value: b.String(), Entries: append([]LinkEntry(nil), entries...)}
}

// Linked reports whether the marker holds at least one entry.
func (s SyncStatus) Linked() bool { return len(s.Entries) > 0 }

// RawValue returns the markup written back to providers.
func (s SyncStatus) RawValue() any { return s.Value }
