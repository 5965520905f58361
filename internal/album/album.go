// Package album holds the persisted record of an album and its per-item
// extraction state. The record is what makes runs resumable: it is
// rewritten after every extracted item, so a crash loses at most the one
// item that was in flight.
package album

// ItemMetadata is the structured metadata read from the info panel of a
// single media item. An item counts as complete once it has been visited
// (ItemURL set) and its details rows were read; completion is the resume
// checkpoint.
type ItemMetadata struct {
	ItemURL  string   `json:"itemUrl"`
	People   []string `json:"people"`
	Albums   []string `json:"albums"`
	Details  []string `json:"details"`
	Position string   `json:"position"`
	Download string   `json:"download,omitempty"`
}

// Complete reports whether this item needs no further visit.
func (m ItemMetadata) Complete() bool {
	return m.ItemURL != "" && len(m.Details) > 0
}

// Album is the on-disk record, one file per album keyed by sanitized
// title. Items is index-aligned with the album's item ordering as
// presented by the host UI and is only ever resized by Reconcile.
type Album struct {
	Title     string         `json:"title"`
	SourceURL string         `json:"sourceUrl"`
	Items     []ItemMetadata `json:"items"`
	// Orphaned holds items that were complete in an earlier run but fell
	// beyond the album's currently reported item count. Kept rather than
	// deleted so no extracted data is lost to drift.
	Orphaned []ItemMetadata `json:"orphaned,omitempty"`
}

// Drift describes a disagreement between the stored item count and the
// freshly observed one.
type Drift struct {
	Stored   int
	Observed int
}

// Reconcile sizes Items to the freshly observed item count, which is
// authoritative. A growing album gains empty slots at the end; a
// shrinking one moves complete trailing items to Orphaned. It returns a
// non-nil Drift when the stored record disagreed with the observation.
func (a *Album) Reconcile(observed int) *Drift {
	stored := len(a.Items)
	if stored == 0 {
		a.Items = make([]ItemMetadata, observed)
		return nil
	}
	if stored == observed {
		return nil
	}
	if observed > stored {
		a.Items = append(a.Items, make([]ItemMetadata, observed-stored)...)
	} else {
		for _, m := range a.Items[observed:] {
			if m.Complete() {
				a.Orphaned = append(a.Orphaned, m)
			}
		}
		a.Items = a.Items[:observed]
	}
	return &Drift{Stored: stored, Observed: observed}
}

// FirstIncomplete returns the index of the first item that still needs a
// visit, or len(Items) when the album is fully extracted.
func (a *Album) FirstIncomplete() int {
	for i, m := range a.Items {
		if !m.Complete() {
			return i
		}
	}
	return len(a.Items)
}
