// Package logging configures slog for uvccap.
//
// Every package asks for a module logger once and keeps it:
//
//	logger := logging.GetLogger("capture").With("device", path)
//
// Initialize sets the global level, the output format (text or json) and
// per-module overrides. Module loggers created before Initialize follow
// the new levels, since each holds a slog.LevelVar.
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"capture": "debug"},
//	})
//
// Console output goes to stderr so stdout stays free for command output
// such as `uvccap info`. When journald is reachable, records are also sent
// to the journal with SYSLOG_IDENTIFIER=uvccap and one field per attribute:
//
//	journalctl -t uvccap MODULE=capture DEVICE=/dev/video0
//
// In a TOML config file module levels may sit directly in [logging] or in
// a [logging.modules] table.
package logging
