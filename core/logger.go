package core

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/jcelliott/lumber"
)

var (
	log     = lumber.NewConsoleLogger(lumber.DEBUG)
	fileLog *lumber.FileLogger
)

func init() {
	log.TimeFormat("2006-01-02 15:04:05.000")
	log.Prefix("ThreadBot")
}

func SetLogLevel(lvl int) {
	log.Level(lvl)
	if fileLog != nil {
		fileLog.Level(lvl)
	}
}

// LogToFile mirrors everything logged to the console into filename,
// replacing and closing any file opened earlier.
func LogToFile(filename string) error {
	fl, err := lumber.NewFileLogger(filename, lumber.INFO, lumber.APPEND, 5000, 9, 100)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	fl.TimeFormat("2006-01-02 15:04:05.000")
	fl.Prefix("ThreadBot")
	CloseLog()
	fileLog = fl
	return nil
}

func CloseLog() {
	if fileLog != nil {
		fileLog.Close()
		fileLog = nil
	}
}

func IsLogInfo() bool {
	return log.IsInfo()
}
func IsLogDebug() bool {
	return log.IsDebug()
}
func IsLogWarn() bool {
	return log.IsWarn()
}
func IsLogError() bool {
	return log.IsError()
}

func LogDebugF(format string, v ...interface{}) {
	if log.IsDebug() {
		doLogF(lumber.DEBUG, format, v...)
	}
}

func LogInfoF(format string, v ...interface{}) {
	if log.IsInfo() {
		doLogF(lumber.INFO, format, v...)
	}
}

func LogWarnF(format string, v ...interface{}) {
	if log.IsWarn() {
		doLogF(lumber.WARN, format, v...)
	}
}

func LogErrorF(format string, v ...interface{}) {
	if log.IsError() {
		doLogF(lumber.ERROR, format, v...)
	}
}

func LogFatalF(format string, v ...interface{}) {
	doLogF(lumber.FATAL, format, v...)
	os.Exit(2)
}

func LogDebug(v ...interface{}) {
	if log.IsDebug() {
		doLog(lumber.DEBUG, v...)
	}
}

func LogInfo(v ...interface{}) {
	if log.IsInfo() {
		doLog(lumber.INFO, v...)
	}
}

func LogWarn(v ...interface{}) {
	if log.IsWarn() {
		doLog(lumber.WARN, v...)
	}
}

func LogError(v ...interface{}) {
	if log.IsError() {
		doLog(lumber.ERROR, v...)
	}
}

func LogFatal(v ...interface{}) {
	doLog(lumber.FATAL, v...)
	os.Exit(2)
}

// Fields render as sorted key="value" pairs.
type Fields map[string]interface{}

func (f Fields) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, fmt.Sprint(f[k])))
	}
	return strings.Join(parts, " ")
}

func LogInfoFields(msg string, fields Fields) {
	if log.IsInfo() {
		doLogF(lumber.INFO, "%s %s", msg, fields)
	}
}

func LogWarnFields(msg string, fields Fields) {
	if log.IsWarn() {
		doLogF(lumber.WARN, "%s %s", msg, fields)
	}
}

func LogErrorFields(msg string, fields Fields) {
	if log.IsError() {
		doLogF(lumber.ERROR, "%s %s", msg, fields)
	}
}

func doLogF(lvl int, format string, v ...interface{}) {
	_, fn, line, _ := runtime.Caller(2)
	emit(lvl, fmt.Sprintf("%s:%d | %s", path.Base(fn), line, fmt.Sprintf(format, v...)))
}

func doLog(lvl int, v ...interface{}) {
	_, fn, line, _ := runtime.Caller(2)
	emit(lvl, fmt.Sprintf("%s:%d | %s", path.Base(fn), line, fmt.Sprint(v...)))
}

func emit(lvl int, msg string) {
	write := func(l interface {
		Fatal(string, ...interface{})
		Error(string, ...interface{})
		Warn(string, ...interface{})
		Info(string, ...interface{})
		Debug(string, ...interface{})
	}) {
		switch lvl {
		case lumber.FATAL:
			l.Fatal("%s", msg)
		case lumber.ERROR:
			l.Error("%s", msg)
		case lumber.WARN:
			l.Warn("%s", msg)
		case lumber.INFO:
			l.Info("%s", msg)
		default:
			l.Debug("%s", msg)
		}
	}
	write(log)
	if fileLog != nil {
		write(fileLog)
	}
}
