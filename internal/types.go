package internal

import (
	"encoding/json"
	"log/syslog"
)

const (
	JobTypeAddUsers     = "AddUsers"
	JobTypeDeleteUsers  = "DeleteUsers"
	JobTypeCreateTags   = "CreateTags"
	JobTypeDeleteTags   = "DeleteTags"
	JobTypeListEntities = "ListEntities"
)

const (
	VerbosityLow    = 0
	VerbosityMedium = 5
	VerbosityHigh   = 10
)

type RuntimeConfig struct {
	MaxConcurrency int
	Verbosity      int
	DryRun         bool
}

// AnalyticsConfig names the default Management API scope for jobs that do not
// enumerate their own accounts/properties/views.
type AnalyticsConfig struct {
	AccountID  string
	PropertyID string
	ViewID     string
}

type TagManagerConfig struct {
	AccountID   string
	ContainerID string
	WorkspaceID string
	DateFormat  string // Go reference layout for tag schedule dates
}

// Job is one unit of work from the config file. ExtraJSON is decoded by the
// job implementation, the same way sync sets carry per-destination config.
type Job struct {
	Name      string
	Type      string
	Disable   bool
	ExtraJSON json.RawMessage
}

// OpResults tallies per-item outcomes of a bulk operation.
type OpResults struct {
	Succeeded uint64
	Failed    uint64
}

type EventLogItem struct {
	Message string
	Level   syslog.Priority
}

func (l EventLogItem) String() string {
	return LogLevels[l.Level] + ": " + l.Message
}

var LogLevels = map[syslog.Priority]string{
	syslog.LOG_EMERG:   "Emerg",
	syslog.LOG_ALERT:   "Alert",
	syslog.LOG_CRIT:    "Critical",
	syslog.LOG_ERR:     "Error",
	syslog.LOG_WARNING: "Warning",
	syslog.LOG_NOTICE:  "Notice",
	syslog.LOG_INFO:    "Info",
	syslog.LOG_DEBUG:   "Debug",
}

type JobError struct {
	Message   error
	SendAlert bool
}

func (j JobError) Error() string {
	return j.Message.Error()
}
