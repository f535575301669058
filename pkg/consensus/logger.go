package consensus

import (
	"fmt"
	"os"

	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"go.etcd.io/raft/v3"
)

// raftLogger routes the raft library's log output into a logging.Logger
type raftLogger struct {
	logger logging.Logger
}

var _ raft.Logger = (*raftLogger)(nil)

// NewRaftLogger adapts logger to the raft.Logger interface
func NewRaftLogger(logger logging.Logger) raft.Logger {
	return &raftLogger{logger: logger}
}

func (l *raftLogger) Debug(v ...any)                 { l.logger.Debug(fmt.Sprint(v...)) }
func (l *raftLogger) Debugf(format string, v ...any) { l.logger.Debug(fmt.Sprintf(format, v...)) }
func (l *raftLogger) Info(v ...any)                  { l.logger.Info(fmt.Sprint(v...)) }
func (l *raftLogger) Infof(format string, v ...any)  { l.logger.Info(fmt.Sprintf(format, v...)) }
func (l *raftLogger) Warning(v ...any)               { l.logger.Warn(fmt.Sprint(v...)) }
func (l *raftLogger) Warningf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}
func (l *raftLogger) Error(v ...any)                 { l.logger.Error(fmt.Sprint(v...)) }
func (l *raftLogger) Errorf(format string, v ...any) { l.logger.Error(fmt.Sprintf(format, v...)) }

func (l *raftLogger) Fatal(v ...any) {
	l.logger.Error(fmt.Sprint(v...))
	os.Exit(1)
}

func (l *raftLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}

func (l *raftLogger) Panic(v ...any) {
	msg := fmt.Sprint(v...)
	l.logger.Error(msg)
	panic(msg)
}

func (l *raftLogger) Panicf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	l.logger.Error(msg)
	panic(msg)
}
