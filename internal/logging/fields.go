package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType names the event a log line records, for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRunID identifies one sync run across the watcher and the child process.
	FieldRunID = "run_id"
	// FieldTrigger names what started a sync (button, udev, mount, manual).
	FieldTrigger = "trigger"
	// FieldPath is the file or directory a line is about.
	FieldPath = "path"
)
