package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig ErrorCode = "invalid_configuration"
	ErrBindFlags     ErrorCode = "bind_flags_failed"
	ErrReadConfig    ErrorCode = "read_config_failed"
	ErrInvalidSource ErrorCode = "invalid_hint_source"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Monitor errors
	ErrMonitorInit    ErrorCode = "monitor_init_failed"
	ErrSysfsOpen      ErrorCode = "sysfs_open_failed"
	ErrSysfsRead      ErrorCode = "sysfs_read_failed"
	ErrSysfsWrite     ErrorCode = "sysfs_write_failed"
	ErrSysfsParse     ErrorCode = "sysfs_parse_failed"
	ErrProcStatRead   ErrorCode = "proc_stat_read_failed"
	ErrNetlinkConnect ErrorCode = "netlink_connect_failed"
	ErrNetlinkGroup   ErrorCode = "netlink_group_failed"
	ErrNetlinkReceive ErrorCode = "netlink_receive_failed"
	ErrNetlinkDecode  ErrorCode = "netlink_decode_failed"

	// Containment errors
	ErrInvariantViolation ErrorCode = "invariant_violation"

	// Hint dispatch errors
	ErrHintConnect  ErrorCode = "hint_service_connect_failed"
	ErrHintDispatch ErrorCode = "hint_dispatch_failed"

	// Process errors
	ErrPidfileWrite   ErrorCode = "pidfile_write_failed"
	ErrAlreadyRunning ErrorCode = "daemon_already_running"

	// Metrics errors
	ErrInitMetrics  ErrorCode = "init_metrics_failed"
	ErrServeMetrics ErrorCode = "serve_metrics_failed"
	ErrCloseMetrics ErrorCode = "close_metrics_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:           "Internal error occurred",
	ErrInvalidArgument:    "Invalid argument provided",
	ErrUnavailable:        "Service unavailable",
	ErrInvalidConfig:      "Invalid configuration",
	ErrBindFlags:          "Failed to bind flags",
	ErrReadConfig:         "Failed to read configuration",
	ErrInvalidSource:      "Invalid hint source",
	ErrInvalidLogLevel:    "Invalid log level",
	ErrInitFailed:         "Initialization failed",
	ErrShutdownFailed:     "Shutdown failed",
	ErrMonitorInit:        "Failed to initialize monitor",
	ErrSysfsOpen:          "Failed to open sysfs entry",
	ErrSysfsRead:          "Failed to read sysfs entry",
	ErrSysfsWrite:         "Failed to write sysfs entry",
	ErrSysfsParse:         "Failed to parse sysfs value",
	ErrProcStatRead:       "Failed to read /proc/stat",
	ErrNetlinkConnect:     "Failed to connect netlink socket",
	ErrNetlinkGroup:       "Failed to join netlink multicast group",
	ErrNetlinkReceive:     "Failed to receive netlink message",
	ErrNetlinkDecode:      "Failed to decode netlink message",
	ErrInvariantViolation: "Invariant violated",
	ErrHintConnect:        "Failed to connect to power hint service",
	ErrHintDispatch:       "Failed to dispatch power hint",
	ErrPidfileWrite:       "Failed to write pidfile",
	ErrAlreadyRunning:     "Daemon is already running",
	ErrInitMetrics:        "Failed to initialize metrics",
	ErrServeMetrics:       "Failed to serve metrics",
	ErrCloseMetrics:       "Failed to close metrics listener",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
