package types

// Notifier defines the common interface for notification services.
type Notifier interface {
	StartNotification()             // Begin queuing messages.
	SendNotification(report Report) // Send queued messages with report.
	GetNames() []string             // Service names.
	AddLogHook()                    // Forward future log entries to the services.
	Close()                         // Stop and flush notifications.
}
