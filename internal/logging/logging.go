// Package logging builds the prefixed loggers used across the client. Log
// output goes to a size-rotated file so a long-lived chat session cannot
// fill the disk; --verbose tees it to stderr as well.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup returns a factory for per-component loggers writing to the rotated
// log file at path. When verbose is true, output also goes to stderr.
func Setup(path string, verbose bool) *Factory {
	var out io.Writer = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}
	if verbose {
		out = io.MultiWriter(out, os.Stderr)
	}
	return &Factory{out: out}
}

// Factory hands out loggers sharing one destination.
type Factory struct {
	out io.Writer
}

// Logger returns a logger with the conventional "[name] " prefix.
func (f *Factory) Logger(name string) *log.Logger {
	return log.New(f.out, "["+name+"] ", log.LstdFlags)
}
