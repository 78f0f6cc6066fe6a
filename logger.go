package swrcache

import "time"

// Logger is the structured logging interface the engine writes to: Info for
// construction and shutdown, Warn for corruption self-healing and failed
// stores, Error for panics recovered from compute, and Debug for background
// refresh progress and skipped writes. Lookups, lock rent/acquire/return and
// lock-pool sweeps are not logged. Implementations are expected to be cheap
// to call at Debug level.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// Named returns a sub-logger scoped under name (e.g. "Engine.lockpool").
	// Naming convention is implementation-specific.
	Named(name string) Logger
}

// Field is a structured key/value pair attached to a log line. Concrete
// fields are produced by the constructor functions below (String, Int, …)
// and consumed by adapters that know how to translate FieldType into their
// own field representation.
type Field interface {
	Key() string
	Value() interface{}
	Type() FieldType
}

// FieldType lets adapters dispatch on a field's payload without a type
// switch over interface{}.
type FieldType int

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeString
	FieldTypeInt
	FieldTypeInt32
	FieldTypeInt64
	FieldTypeDuration
	FieldTypeTime
	FieldTypeError
	FieldTypeAny
	FieldTypeByteString
	FieldTypeStack
)

type field struct {
	key       string
	value     interface{}
	fieldType FieldType
}

func (f field) Key() string        { return f.key }
func (f field) Value() interface{} { return f.value }
func (f field) Type() FieldType    { return f.fieldType }

func String(key, val string) Field               { return field{key, val, FieldTypeString} }
func Int(key string, val int) Field              { return field{key, val, FieldTypeInt} }
func Int32(key string, val int32) Field          { return field{key, val, FieldTypeInt32} }
func Int64(key string, val int64) Field          { return field{key, val, FieldTypeInt64} }
func Duration(key string, val time.Duration) Field { return field{key, val, FieldTypeDuration} }
func Time(key string, val time.Time) Field       { return field{key, val, FieldTypeTime} }
func Any(key string, val interface{}) Field      { return field{key, val, FieldTypeAny} }
func ByteString(key string, val []byte) Field    { return field{key, val, FieldTypeByteString} }

// Error creates an error field keyed "error".
func Error(err error) Field { return field{"error", err, FieldTypeError} }

// ErrorKey creates an error field under a custom key.
func ErrorKey(key string, err error) Field { return field{key, err, FieldTypeError} }

// Stack creates a stack-trace field keyed "stacktrace", used when recovering
// panics from compute callbacks.
func Stack(val string) Field { return field{"stacktrace", val, FieldTypeStack} }

func StackKey(key string, val string) Field { return field{key, val, FieldTypeStack} }

// NoOpLogger discards everything. NewEngine rejects a nil Logger, so pass
// NewNoOpLogger() when no logging is wanted.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, fields ...Field) {}
func (NoOpLogger) Info(msg string, fields ...Field)  {}
func (NoOpLogger) Warn(msg string, fields ...Field)  {}
func (NoOpLogger) Error(msg string, fields ...Field) {}
func (n NoOpLogger) Named(name string) Logger        { return n }

// NewNoOpLogger constructs a Logger that discards all records.
func NewNoOpLogger() Logger { return NoOpLogger{} }
