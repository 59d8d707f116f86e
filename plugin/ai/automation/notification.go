package automation

import (
	"regexp"
	"strings"
)

// Template is a prepared actionable notification.
type Template struct {
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Actions   []string `json:"actions"`
	Questions []string `json:"questions"`
}

var eventTemplates = map[string]Template{
	"garage_open": {
		Title:     "Garage door left open",
		Message:   "The garage door appears to be open. Would you like to close it?",
		Actions:   []string{"Close garage", "Remind me in 10 minutes", "Ignore"},
		Questions: []string{"Is anyone working in the garage?"},
	},
	"leak_detected": {
		Title:     "Leak detected",
		Message:   "A leak sensor reported water detected. Consider shutting off water and checking the area.",
		Actions:   []string{"Shut off water", "View sensors", "Call for help"},
		Questions: []string{"Where is the leak sensor located?"},
	},
	"motion_at_night": {
		Title:     "Motion detected at night",
		Message:   "Motion was detected during quiet hours. Do you want to turn on lights or check cameras?",
		Actions:   []string{"Turn on lights", "View cameras", "Ignore"},
		Questions: []string{"Is this expected activity?"},
	},
	"hvac_anomaly": {
		Title:     "HVAC anomaly detected",
		Message:   "HVAC behavior looks unusual. Check filters or adjust setpoints if needed.",
		Actions:   []string{"Check thermostat", "Adjust setpoint", "Ignore"},
		Questions: []string{"Is the home occupied right now?"},
	},
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9_]`)

// NotificationTemplate returns the template for an event type such as
// "Garage Open" or "leak-detected". The second result is false for unknown
// events.
func NotificationTemplate(eventType string) (Template, bool) {
	key := strings.Trim(nonKeyChars.ReplaceAllString(strings.ToLower(eventType), "_"), "_")
	tmpl, ok := eventTemplates[key]
	if !ok {
		return Template{}, false
	}
	tmpl.Actions = append([]string(nil), tmpl.Actions...)
	tmpl.Questions = append([]string(nil), tmpl.Questions...)
	return tmpl, true
}

// EventTypes lists the known event types.
func EventTypes() []string {
	return []string{"garage_open", "hvac_anomaly", "leak_detected", "motion_at_night"}
}
