package types

import "time"

// AlertLevel is the severity of a session alert.
type AlertLevel string

const (
	AlertLevelInfo    AlertLevel = "info"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelError   AlertLevel = "error"
)

// AlertType selects an alert sink.
type AlertType string

const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
	AlertSNS     AlertType = "sns"
)

// AlertConfig configures one alert sink.
type AlertConfig struct {
	Type     AlertType  `yaml:"type"`
	URL      string     `yaml:"url,omitempty"`
	Path     string     `yaml:"path,omitempty"`
	TopicARN string     `yaml:"topicArn,omitempty"`
	MinLevel AlertLevel `yaml:"minLevel,omitempty"` // defaults to info
}

// Alert summarises the outcome of a session for the people who look after a
// dataset.
type Alert struct {
	Level       AlertLevel `json:"level"`
	Dataset     string     `json:"dataset"`
	SessionID   string     `json:"sessionId,omitempty"`
	Message     string     `json:"message"`
	Files       int        `json:"files"`
	FailedFiles []string   `json:"failedFiles,omitempty"`
	Errors      int        `json:"errors"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Rank orders levels from info to error. Unknown levels rank as info.
func (l AlertLevel) Rank() int {
	switch l {
	case AlertLevelWarning:
		return 1
	case AlertLevelError:
		return 2
	default:
		return 0
	}
}
