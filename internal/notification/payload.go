package notification

// Payload defaults applied by WithDefaults.
const (
	DefaultIcon = "/manifest-icon-192.png"
	DefaultTag  = "study-tracker-notification"
)

// Action is a button shown with a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Payload is the JSON document delivered to the client's service worker and
// to local live clients.
type Payload struct {
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon,omitempty"`
	Tag                string         `json:"tag,omitempty"`
	Data               map[string]any `json:"data"`
	Actions            []Action       `json:"actions"`
	RequireInteraction bool           `json:"requireInteraction,omitempty"`
}

// DefaultActions are used when a payload names none.
func DefaultActions() []Action {
	return []Action{
		{Action: "view", Title: "💖 View"},
		{Action: "dismiss", Title: "💤 Dismiss"},
	}
}

// WithDefaults returns a copy of p with empty icon, tag, data and actions
// filled in.
func (p Payload) WithDefaults() Payload {
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	if p.Tag == "" {
		p.Tag = DefaultTag
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}
	if len(p.Actions) == 0 {
		p.Actions = DefaultActions()
	}
	return p
}
