package payload

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is a verified processor event envelope. Object holds the raw
// data.object of the event; its shape depends on Type.
type Event struct {
	ID        string
	Type      string
	CreatedAt time.Time
	Livemode  bool
	Object    []byte
}

// envelope mirrors the wire shape of a processor event
type envelope struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object jsoniter.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a raw event envelope. Callers must have verified the
// payload signature before trusting the result.
func ParseEvent(raw []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, malformed("event envelope is not valid JSON", map[string]any{})
	}
	return NewEvent(env.ID, env.Type, env.Created, env.Livemode, env.Data.Object)
}

// NewEvent builds an Event from already separated envelope fields
func NewEvent(id, eventType string, created int64, livemode bool, object []byte) (*Event, error) {
	if id == "" || eventType == "" {
		return nil, malformed("event is missing id or type", map[string]any{
			"event_id":   id,
			"event_type": eventType,
		})
	}
	if created <= 0 {
		return nil, malformed("event is missing its creation timestamp", map[string]any{
			"event_id": id,
		})
	}
	return &Event{
		ID:        id,
		Type:      eventType,
		CreatedAt: time.Unix(created, 0).UTC(),
		Livemode:  livemode,
		Object:    object,
	}, nil
}

// ref is a processor reference that is either a bare id or an expanded
// object carrying an id field.
type ref string

func (r *ref) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*r = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = ref(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*r = ref(obj.ID)
	return nil
}

func (r ref) String() string {
	return string(r)
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
