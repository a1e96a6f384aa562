package events

import (
	"encoding/json"
	"fmt"
)

// AutoPickTrigger says why the system resolved a turn on a participant's behalf.
type AutoPickTrigger int

const (
	TriggerTimeout AutoPickTrigger = iota + 1
	TriggerAutoEnabled
)

func (t AutoPickTrigger) String() string {
	switch t {
	case TriggerTimeout:
		return "timeout"
	case TriggerAutoEnabled:
		return "auto_enabled"
	default:
		return fmt.Sprintf("AutoPickTrigger(%d)", int(t))
	}
}

// PickSource says how the autopicked team was chosen.
type PickSource int

const (
	SourcePreferences PickSource = iota + 1
	SourceRandom
)

func (s PickSource) String() string {
	switch s {
	case SourcePreferences:
		return "preferences"
	case SourceRandom:
		return "random"
	default:
		return fmt.Sprintf("PickSource(%d)", int(s))
	}
}

// AutoPickReason tags an autopick with both its trigger and its source.
type AutoPickReason struct {
	Trigger AutoPickTrigger
	Source  PickSource
}

type autoPickReasonJSON struct {
	Trigger string `json:"trigger"`
	Source  string `json:"source"`
}

func (r AutoPickReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(autoPickReasonJSON{Trigger: r.Trigger.String(), Source: r.Source.String()})
}

func (r *AutoPickReason) UnmarshalJSON(data []byte) error {
	var raw autoPickReasonJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Trigger {
	case "timeout":
		r.Trigger = TriggerTimeout
	case "auto_enabled":
		r.Trigger = TriggerAutoEnabled
	default:
		return fmt.Errorf("unknown autopick trigger %q", raw.Trigger)
	}
	switch raw.Source {
	case "preferences":
		r.Source = SourcePreferences
	case "random":
		r.Source = SourceRandom
	default:
		return fmt.Errorf("unknown autopick source %q", raw.Source)
	}
	return nil
}

// Describe renders the activity line shown to league members.
func (r AutoPickReason) Describe(participantName, teamName string) string {
	var why string
	switch r.Trigger {
	case TriggerTimeout:
		why = fmt.Sprintf("%s ran out of time", participantName)
	case TriggerAutoEnabled:
		why = fmt.Sprintf("%s is on autodraft", participantName)
	default:
		why = participantName
	}

	switch r.Source {
	case SourcePreferences:
		return fmt.Sprintf("%s; drafted %s from their rankings", why, teamName)
	case SourceRandom:
		return fmt.Sprintf("%s; drafted %s at random", why, teamName)
	default:
		return fmt.Sprintf("%s; drafted %s", why, teamName)
	}
}
