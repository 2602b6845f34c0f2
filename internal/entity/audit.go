package entity

import "gorm.io/datatypes"

// MaxAuditEntries bounds the audit log kept on each row
const MaxAuditEntries = 50

// AuditEntry is one diagnostic annotation
type AuditEntry struct {
	At     int64          `json:"at"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields,omitempty"`
}

// AuditLog is an append-only list of annotations. When full the oldest
// entries are evicted and counted in Dropped.
type AuditLog struct {
	Entries []AuditEntry `json:"entries"`
	Dropped int          `json:"dropped,omitempty"`
}

// Append returns a copy of the log with the entry added
func (l AuditLog) Append(e AuditEntry) AuditLog {
	entries := make([]AuditEntry, 0, len(l.Entries)+1)
	entries = append(entries, l.Entries...)
	entries = append(entries, e)
	dropped := l.Dropped
	if over := len(entries) - MaxAuditEntries; over > 0 {
		entries = entries[over:]
		dropped += over
	}
	return AuditLog{Entries: entries, Dropped: dropped}
}

// Last returns the newest entry of the given kind
func (l AuditLog) Last(kind string) (AuditEntry, bool) {
	for i := len(l.Entries) - 1; i >= 0; i-- {
		if l.Entries[i].Kind == kind {
			return l.Entries[i], true
		}
	}
	return AuditEntry{}, false
}

// Extra is the JSON column holding an AuditLog
type Extra = datatypes.JSONType[AuditLog]

// appendExtra records an entry on an Extra column
func appendExtra(x *Extra, kind string, fields map[string]any) {
	*x = datatypes.NewJSONType(x.Data().Append(AuditEntry{
		At:     NowUnixMilli(),
		Kind:   kind,
		Fields: fields,
	}))
}
