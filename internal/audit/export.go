package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"
)

// WriteJSON writes the entries as a single JSON array.
func WriteJSON(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	return json.NewEncoder(w).Encode(entries)
}

// WriteNDJSON writes one JSON object per line, ready for log shippers.
func WriteNDJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return err
		}
	}
	return nil
}

var csvHeader = []string{
	"id", "occurred_at",
	"actor_id", "actor_email", "actor_role",
	"action", "resource_kind", "resource_id",
	"method", "path", "origin", "user_agent", "request_id",
	"status_code", "success", "metadata",
}

// WriteCSV writes a header row followed by one row per entry. Metadata is
// flattened into a JSON object in the last column.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		meta := ""
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return err
			}
			meta = string(b)
		}
		row := []string{
			e.ID,
			e.OccurredAt.Format(time.RFC3339Nano),
			e.ActorID, e.ActorEmail, e.ActorRole,
			string(e.Action), e.ResourceKind, e.ResourceID,
			e.Method, e.Path, e.Origin, e.UserAgent, e.RequestID,
			strconv.Itoa(e.StatusCode),
			strconv.FormatBool(e.Success),
			meta,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
