package ucremote

import (
	"encoding/json"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/domain/setup"
)

// The host speaks a JSON request/response/event protocol over one websocket.
// Requests carry a client-chosen id echoed in the response; events are
// unsolicited.

type request struct {
	Kind    string          `json:"kind"`
	ID      int             `json:"id"`
	Msg     string          `json:"msg"`
	MsgData json.RawMessage `json:"msg_data,omitempty"`
}

type response struct {
	Kind    string `json:"kind"`
	ReqID   int    `json:"req_id"`
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	MsgData any    `json:"msg_data,omitempty"`
}

type event struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Msg     string `json:"msg"`
	Cat     string `json:"cat,omitempty"`
	MsgData any    `json:"msg_data,omitempty"`
}

type subscribePayload struct {
	EntityIDs []string `json:"entity_ids"`
}

type commandPayload struct {
	EntityID string         `json:"entity_id"`
	CmdID    string         `json:"cmd_id"`
	Params   map[string]any `json:"params"`
}

type setupPayload struct {
	SetupData   map[string]any `json:"setup_data"`
	Reconfigure bool           `json:"reconfigure"`
}

type userDataPayload struct {
	InputValues map[string]any `json:"input_values"`
}

type entityChange struct {
	EntityID   string           `json:"entity_id"`
	EntityType model.EntityKind `json:"entity_type"`
	Attributes model.Attributes `json:"attributes"`
}

type setupChange struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// driverMetadata describes the integration to the host, including the setup
// form it should render.
type driverMetadata struct {
	DriverID string    `json:"driver_id"`
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Setup    setupForm `json:"setup_data_schema"`
}

type setupForm struct {
	Title  string       `json:"title"`
	Fields []setupField `json:"settings"`
}

type setupField struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Field map[string]any `json:"field"`
}

func metadata(version string) driverMetadata {
	items := make([]map[string]string, len(setup.Providers))
	for i, p := range setup.Providers {
		items[i] = map[string]string{"id": p.ID, "label": p.Label}
	}

	return driverMetadata{
		DriverID: "horizon_bridge",
		Name:     "Horizon TV",
		Version:  version,
		Setup: setupForm{
			Title: "Horizon Setup",
			Fields: []setupField{
				{
					ID:    "provider",
					Label: "Provider",
					Field: map[string]any{"dropdown": map[string]any{"items": items}},
				},
				{
					ID:    "username",
					Label: "Username / Email",
					Field: map[string]any{"text": map[string]any{"placeholder": "your.email@example.com"}},
				},
				{
					ID:    "password",
					Label: "Password (or Refresh Token)",
					Field: map[string]any{"password": map[string]any{}},
				},
			},
		},
	}
}
