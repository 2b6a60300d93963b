package log

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug bool

// Logger is a global interface for radiopipe loggers
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})
}

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("RADIOPIPE_DEBUG"))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance
func GetLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}
