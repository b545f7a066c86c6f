package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"conecta/internal/domain"
)

// Writer appends audit events inside the caller's transaction.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event. projectID 0 means the event is not project scoped.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, projectID int64, entityKind string, entityID int64, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(domain.TimeLayout)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if actorID == "" {
		actorID = "system"
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,proyecto_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullableID(projectID), entityKind, entityRef(entityID), actorID, string(data))
	return err
}

// Actor formats a principal reference such as "vendedor:3".
func Actor(role string, id int64) string {
	if id == 0 {
		return role
	}
	return role + ":" + strconv.FormatInt(id, 10)
}

func nullableID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func entityRef(v int64) any {
	if v == 0 {
		return nil
	}
	return strconv.FormatInt(v, 10)
}
