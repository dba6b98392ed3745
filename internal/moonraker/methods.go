package moonraker

// Request methods used by the link and its consumers.
const (
	MethodObjectsList      = "printer.objects.list"
	MethodObjectsSubscribe = "printer.objects.subscribe"
	MethodGCodeScript      = "printer.gcode.script"
	MethodEmergencyStop    = "printer.emergency_stop"
	MethodServerInfo       = "server.info"
	MethodSystemInfo       = "machine.system_info"
	MethodProcStats        = "machine.proc_stats"
)

// Notifications pushed by Moonraker without an id.
const (
	NotifyStatusUpdate       = "notify_status_update"
	NotifyGCodeResponse      = "notify_gcode_response"
	NotifyKlippyReady        = "notify_klippy_ready"
	NotifyKlippyShutdown     = "notify_klippy_shutdown"
	NotifyKlippyDisconnected = "notify_klippy_disconnected"
)
