package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает имя уровня (без учёта регистра не поддерживается, только верхний)
func ParseLevel(s string) (LogLevel, bool) {
	for l := TRACE; l <= ERROR; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return INFO, false
}

// Logger представляет логгер компонента.
// Нулевой указатель допустим: все методы становятся no-op.
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
	mu              sync.Mutex
}

// LogsDir каталог для файловых логов
var LogsDir = "logs"

// NewLogger создаёт логгер компонента с выводом в консоль и в файл logs/<component>_<ts>.log
func NewLogger(component string) (*Logger, error) {
	if err := os.MkdirAll(LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", LogsDir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(LogsDir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	return &Logger{
		component:       component,
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		fileLogger:      log.New(file, "", log.LstdFlags|log.Lmicroseconds),
		file:            file,
		minConsoleLevel: INFO,
		minFileLevel:    TRACE,
	}, nil
}

// NewWriterLogger создаёт логгер без файла, пишущий в w начиная с уровня minLevel.
// Используется в тестах и как fallback.
func NewWriterLogger(component string, w io.Writer, minLevel LogLevel) *Logger {
	return &Logger{
		component:       component,
		consoleLogger:   log.New(w, "", log.LstdFlags),
		minConsoleLevel: minLevel,
		minFileLevel:    ERROR,
	}
}

// Close закрывает файл логов
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

// Component возвращает имя компонента
func (l *Logger) Component() string {
	if l == nil {
		return ""
	}
	return l.component
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// Enabled сообщает, будет ли записано сообщение указанного уровня хотя бы в один приёмник.
// Позволяет не форматировать дорогие TRACE-сообщения в горячем цикле.
func (l *Logger) Enabled(level LogLevel) bool {
	if l == nil {
		return false
	}
	return (l.fileLogger != nil && level >= l.minFileLevel) ||
		(l.consoleLogger != nil && level >= l.minConsoleLevel)
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

// Глобальный логгер по умолчанию
var defaultLogger = NewWriterLogger("default", os.Stdout, INFO)

// InitDefaultLogger инициализирует логгер по умолчанию с файловым выводом
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}
	defaultLogger = logger
	return nil
}

// CloseDefaultLogger закрывает логгер по умолчанию
func CloseDefaultLogger() {
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
}

// SetDefaultLevel меняет минимальный уровень консольного вывода логгера по умолчанию
func SetDefaultLevel(level LogLevel) {
	defaultLogger.mu.Lock()
	defaultLogger.minConsoleLevel = level
	defaultLogger.mu.Unlock()
}

func Trace(format string, args ...interface{}) { defaultLogger.Trace(format, args...) }
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }
