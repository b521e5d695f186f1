package cmd

import (
	"fmt"
	"log/syslog"
	"os"

	blog "github.com/pkitrust/pkitrust/log"
)

// SyslogConfig defines the config for syslogging.
type SyslogConfig struct {
	StdoutLevel int
	SyslogLevel int
}

// NewLogger constructs a blog.Logger backed by syslog, following the same
// dual syslog+stdout-writer shape as the rest of this module's log package.
func NewLogger(cfg SyslogConfig) blog.Logger {
	syslogger, err := syslog.Dial("", "", syslog.LOG_INFO|syslog.LOG_LOCAL0, "pkitrust")
	if err != nil {
		FailOnError(err, "Could not connect to syslog")
	}
	logger, err := blog.New(syslogger, cfg.StdoutLevel, cfg.SyslogLevel)
	FailOnError(err, "Could not construct logger")
	return logger
}

// FailOnError exits the process with msg and err printed to stderr if err is
// non-nil. It is a no-op otherwise.
func FailOnError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}

// Fail exits the process immediately with msg printed to stderr.
func Fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
