package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aaronwald/ssmd/internal/cdc"
)

// walMessage is one row's decoded wal2json payload: a batch of changes
// committed together.
type walMessage struct {
	Change []walChange `json:"change"`
}

type walChange struct {
	Kind         string   `json:"kind"`
	Schema       string   `json:"schema"`
	Table        string   `json:"table"`
	ColumnNames  []string `json:"columnnames"`
	ColumnValues []any    `json:"columnvalues"`
	OldKeys      *oldKeys `json:"oldkeys"`
}

type oldKeys struct {
	KeyNames  []string `json:"keynames"`
	KeyValues []any    `json:"keyvalues"`
}

// parseWAL2JSON decodes one row returned by pg_logical_slot_get_changes
// into zero or more CDC events. A row that fails to parse as wal2json
// returns an error so the caller can skip it and log a warning.
func parseWAL2JSON(lsn string, data []byte) ([]cdc.Event, error) {
	var msg walMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	events := make([]cdc.Event, 0, len(msg.Change))
	for _, ch := range msg.Change {
		event, ok := buildEvent(lsn, now, ch)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func buildEvent(lsn string, now time.Time, ch walChange) (cdc.Event, bool) {
	var op cdc.Operation
	switch ch.Kind {
	case "insert":
		op = cdc.OpInsert
	case "update":
		op = cdc.OpUpdate
	case "delete":
		op = cdc.OpDelete
	default:
		return cdc.Event{}, false
	}

	var key map[string]any
	switch {
	case len(ch.ColumnNames) > 0 && len(ch.ColumnValues) > 0:
		key = map[string]any{ch.ColumnNames[0]: ch.ColumnValues[0]}
	case ch.OldKeys != nil && len(ch.OldKeys.KeyNames) > 0 && len(ch.OldKeys.KeyValues) > 0:
		key = map[string]any{ch.OldKeys.KeyNames[0]: ch.OldKeys.KeyValues[0]}
	}

	var data map[string]any
	if op != cdc.OpDelete && len(ch.ColumnNames) > 0 && len(ch.ColumnNames) == len(ch.ColumnValues) {
		data = make(map[string]any, len(ch.ColumnNames))
		for i, name := range ch.ColumnNames {
			data[name] = ch.ColumnValues[i]
		}
	}

	return cdc.Event{
		EventID:   uuid.NewString(),
		LSN:       lsn,
		Table:     ch.Table,
		Op:        op,
		Key:       key,
		Data:      data,
		Timestamp: now,
	}, true
}
