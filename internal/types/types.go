package types

// MXRecord is a single mail exchanger for a domain. Records are treated as
// immutable once resolved; ordering by priority is left to the caller.
type MXRecord struct {
	Exchange string `json:"exchange"`
	Priority uint16 `json:"priority"`
}

// CopyMX returns a copy of records so cached slices never escape.
func CopyMX(records []MXRecord) []MXRecord {
	if records == nil {
		return nil
	}
	out := make([]MXRecord, len(records))
	copy(out, records)
	return out
}
