package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

const loggerTag = "logger"

var loggerServiceType = reflect.TypeOf((*LoggerService)(nil)).Elem()

// LoggerTagProcessor injects loggers into fields tagged fabric:"logger" or
// fabric:"logger:<component>". A component name yields Named(component) of
// the registered LoggerService.
type LoggerTagProcessor struct{}

func NewLoggerTagProcessor() *LoggerTagProcessor {
	return &LoggerTagProcessor{}
}

// GetPriority runs the processor ahead of the default inject processor.
func (ltp *LoggerTagProcessor) GetPriority() int {
	return 50
}

func (ltp *LoggerTagProcessor) CanProcess(value string) bool {
	_, ok := componentName(value)
	return ok
}

func (ltp *LoggerTagProcessor) Process(ctx context.Context, sc *container.ServiceContainer, field reflect.StructField, value string) (any, error) {
	component, ok := componentName(value)
	if !ok {
		return nil, fmt.Errorf("tag '%s' of field '%s' is not a logger tag", value, field.Name)
	}

	found, resolved := sc.ResolveByType(ctx, loggerServiceType)
	if !found {
		return nil, fmt.Errorf("no LoggerService registered for field '%s'", field.Name)
	}
	base, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("registered logger of field '%s' is %T", field.Name, resolved)
	}

	if component == "" {
		return base, nil
	}
	return base.Named(component), nil
}

// ResolveNamed returns the registered LoggerService named after component.
func ResolveNamed(ctx context.Context, sc *container.ServiceContainer, component string) (LoggerService, error) {
	value := loggerTag
	if component != "" {
		value += ":" + component
	}

	resolved, err := NewLoggerTagProcessor().Process(ctx, sc, reflect.StructField{Name: component}, value)
	if err != nil {
		return nil, err
	}
	return resolved.(LoggerService), nil
}

// componentName parses "logger" and "logger:<component>", case-insensitive.
func componentName(value string) (string, bool) {
	prefix, component, hasComponent := strings.Cut(value, ":")
	if !strings.EqualFold(strings.TrimSpace(prefix), loggerTag) {
		return "", false
	}
	if !hasComponent {
		return "", true
	}
	return strings.TrimSpace(component), true
}
