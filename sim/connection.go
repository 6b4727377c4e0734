package sim

// A Connection transfers messages between ports.
type Connection interface {
	Named

	// PlugIn connects a port to the connection.
	PlugIn(port Port)

	// Unplug removes a port from the connection.
	Unplug(port Port)

	// NotifyAvailable is called by a port to notify the connection that the
	// port can receive messages again.
	NotifyAvailable(port Port)

	// NotifySend is called by a port to notify the connection that there are
	// messages to deliver.
	NotifySend()
}
