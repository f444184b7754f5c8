package stdout

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

var levels = map[string]int{"INFO": 0, "WARN": 1, "ERROR": 2}

type field struct {
	key   string
	value interface{}
}

// Logger implements ports.Logger writing one line per entry. Text lines
// keep fields in the order they were given, scoped fields first.
type Logger struct {
	out      *log.Logger
	json     bool
	minLevel int
	fields   []field
}

// NewLogger creates a stdout logger. format is "json" or "text", level one
// of info, warn or error.
func NewLogger(format, level string) *Logger {
	return NewLoggerTo(os.Stdout, format, level)
}

// NewLoggerTo creates a logger writing to w
func NewLoggerTo(w io.Writer, format, level string) *Logger {
	return &Logger{
		out:      log.New(w, "", 0),
		json:     format == "json",
		minLevel: levels[strings.ToUpper(level)],
	}
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.write("INFO", msg, fields)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.write("WARN", msg, fields)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.write("ERROR", msg, fields)
}

// WithFields returns a child logger; the receiver is left untouched
func (l *Logger) WithFields(fields map[string]interface{}) ports.Logger {
	child := *l
	child.fields = make([]field, 0, len(l.fields)+len(fields))
	child.fields = append(child.fields, l.fields...)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		child.fields = upsert(child.fields, k, fields[k])
	}
	return &child
}

func (l *Logger) write(level, msg string, kv []interface{}) {
	if levels[level] < l.minLevel {
		return
	}

	entry := append([]field(nil), l.fields...)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		value := kv[i+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		entry = upsert(entry, key, value)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if l.json {
		l.writeJSON(now, level, msg, entry)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", now, level, msg)
	for i, f := range entry {
		if i == 0 {
			b.WriteString(" |")
		}
		fmt.Fprintf(&b, " %s=%v", f.key, f.value)
	}
	l.out.Println(b.String())
}

func (l *Logger) writeJSON(now, level, msg string, entry []field) {
	doc := make(map[string]interface{}, len(entry)+3)
	for _, f := range entry {
		doc[f.key] = f.value
	}
	doc["timestamp"] = now
	doc["level"] = level
	doc["message"] = msg

	data, err := json.Marshal(doc)
	if err != nil {
		l.out.Printf(`{"level":"ERROR","message":"unencodable log entry","error":%q}`, err.Error())
		return
	}
	l.out.Println(string(data))
}

// upsert replaces key in place or appends it
func upsert(fields []field, key string, value interface{}) []field {
	for i := range fields {
		if fields[i].key == key {
			fields[i].value = value
			return fields
		}
	}
	return append(fields, field{key: key, value: value})
}
