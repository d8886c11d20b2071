package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve picks the logger for name: provider first, then logger, then nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// JobLogger resolves the logger for name and hands it to go-job in its own
// logger contract. The queue worker logs deliveries through it.
func JobLogger(name string, provider glog.LoggerProvider, logger glog.Logger) job.Logger {
	_, resolved := Resolve(name, provider, logger)
	return job.GoLogger(glog.Ensure(resolved))
}
