package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line logger. Every line it emits is one JSON
// object, so the process output stays machine-parseable end to end.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits a pre-assembled set of HTTP request fields as one line.
func LogRequest(fields map[string]any) {
	emit(fields)
}

// LogEvent emits a line for non-request events: startup, shutdown, lockouts,
// audit append failures. Fields may be nil.
func LogEvent(level, msg string, fields map[string]any) {
	line := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		line[k] = v
	}
	line["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	line["level"] = level
	line["msg"] = msg
	emit(line)
}

func emit(line map[string]any) {
	data, err := json.Marshal(line)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
