// Package env builds process environments from an ordered sequence of
// operations applied to a base mapping.
package env

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Operation is one kind of environment modification.
type Operation string

const (
	// OpSet sets an environment variable.
	OpSet Operation = "set"
	// OpAppend appends to a path-list variable using the platform separator.
	OpAppend Operation = "append"
	// OpPrepend prepends to a path-list variable using the platform separator.
	OpPrepend Operation = "prepend"
	// OpDelete unsets an environment variable.
	OpDelete Operation = "delete"
	// OpClear drops all entries.
	OpClear Operation = "clear"
)

var ErrInvalidHandler = errors.New("invalid environment handler")

// Handler is a single environment modification.
type Handler struct {
	Op    Operation `yaml:"op" json:"op"`
	Key   string    `yaml:"key" json:"key"`
	Value string    `yaml:"value" json:"value"`
}

// NewHandler validates the key/value requirements of the operation.
func NewHandler(op Operation, key, value string) (Handler, error) {
	if key == "" && op != OpClear {
		return Handler{}, fmt.Errorf("%w: a key must be specified for operation %s", ErrInvalidHandler, op)
	}

	if value == "" && (op == OpAppend || op == OpPrepend) {
		return Handler{}, fmt.Errorf("%w: a value must be specified for operation %s", ErrInvalidHandler, op)
	}

	return Handler{Op: op, Key: key, Value: value}, nil
}

func (h Handler) apply(logger *zap.Logger, env map[string]string) {
	switch h.Op {
	case OpSet:
		logger.Debug("set environment entry", zap.String("key", h.Key), zap.String("value", h.Value))
		env[h.Key] = h.Value
	case OpAppend:
		if current, ok := env[h.Key]; ok {
			env[h.Key] = current + string(os.PathListSeparator) + h.Value
		} else {
			env[h.Key] = h.Value
		}
		logger.Debug("append to environment entry", zap.String("key", h.Key), zap.String("value", h.Value))
	case OpPrepend:
		if current, ok := env[h.Key]; ok {
			env[h.Key] = h.Value + string(os.PathListSeparator) + current
		} else {
			env[h.Key] = h.Value
		}
		logger.Debug("prepend to environment entry", zap.String("key", h.Key), zap.String("value", h.Value))
	case OpDelete:
		if _, ok := env[h.Key]; ok {
			logger.Debug("delete environment entry", zap.String("key", h.Key))
			delete(env, h.Key)
		}
	case OpClear:
		logger.Debug("clear whole environment")
		for key := range env {
			delete(env, key)
		}
	}
}

// Pipeline applies its handlers left-to-right to a copy of the base
// environment. Executing a pipeline never modifies the base mapping, so a
// pipeline can be executed repeatedly with the same result.
type Pipeline struct {
	logger   *zap.Logger
	base     map[string]string
	handlers []Handler
}

// NewPipeline creates a pipeline seeded with a copy of base. A nil base
// yields an empty starting environment.
func NewPipeline(logger *zap.Logger, base map[string]string) *Pipeline {
	seed := make(map[string]string, len(base))
	for key, value := range base {
		seed[key] = value
	}

	return &Pipeline{
		logger: logger,
		base:   seed,
	}
}

// NewProcessPipeline creates a pipeline seeded with the current process
// environment.
func NewProcessPipeline(logger *zap.Logger) *Pipeline {
	base := map[string]string{}
	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok {
			base[key] = value
		}
	}
	return NewPipeline(logger, base)
}

func (p *Pipeline) Add(handlers ...Handler) {
	p.handlers = append(p.handlers, handlers...)
}

// Execute materializes the final environment mapping.
func (p *Pipeline) Execute() map[string]string {
	env := make(map[string]string, len(p.base))
	for key, value := range p.base {
		env[key] = value
	}

	for _, handler := range p.handlers {
		handler.apply(p.logger, env)
	}

	return env
}
