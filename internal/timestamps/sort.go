package timestamps

import (
	"sort"
	"time"

	"csbridge/internal/models"
)

// before is a strict total order on (known, time, id). Rows with an unknown
// instant sort ahead of every timed row and among themselves by id, so one
// unparseable row never reorders the timed ones around it.
func before(at, bt *time.Time, aID, bID int64) bool {
	switch {
	case at == nil && bt == nil:
		return aID < bID
	case at == nil:
		return true
	case bt == nil:
		return false
	case !at.Equal(*bt):
		return at.Before(*bt)
	}
	return aID < bID
}

// SortThread orders a conversation oldest first.
func SortThread(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return before(msgs[i].CreatedAt, msgs[j].CreatedAt, msgs[i].ID, msgs[j].ID)
	})
}

// SortInbound orders the inbound queue newest first.
func SortInbound(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return before(msgs[j].CreatedAt, msgs[i].CreatedAt, msgs[j].ID, msgs[i].ID)
	})
}

// SortAttachments orders attachments oldest first.
func SortAttachments(atts []models.Attachment) {
	sort.SliceStable(atts, func(i, j int) bool {
		return before(atts[i].CreatedAt, atts[j].CreatedAt, atts[i].ID, atts[j].ID)
	})
}
