package pipeline

import (
	"fmt"

	"testpipe/internal/domain/testrun"
)

// Config declares every facade, handler list and gate of a test
// configuration. NewConfiguration validates it once; after that the
// orchestrator routes artifacts purely by kind tags, with the guarantee
// that a facade and the handlers receiving its output were registered for
// the same kind.
type Config struct {
	Frontends  []FrontendRegistration
	Converters []Converter
	Backends   []BackendRegistration
	Binaries   []BinaryRegistration
}

// FrontendRegistration pairs a frontend facade with the handlers that
// inspect its output and an optional gate.
type FrontendRegistration struct {
	Facade   FrontendFacade
	Handlers []FrontendHandler
	Gate     Gate
}

// BackendRegistration declares one backend kind: its gate and the handlers
// that inspect its input artifacts.
type BackendRegistration struct {
	Kind     testrun.BackendKind
	Handlers []BackendInputHandler
	Gate     Gate
}

// BinaryRegistration pairs a backend facade with the handlers that inspect
// the binary kind it produces and an optional gate.
type BinaryRegistration struct {
	Facade   BackendFacade
	Handlers []BinaryHandler
	Gate     Gate
}

type frontendEntry struct {
	facade   FrontendFacade
	handlers []FrontendHandler
	gate     Gate
}

type backendEntry struct {
	kind     testrun.BackendKind
	handlers []BackendInputHandler
	gate     Gate
}

type binaryEntry struct {
	facade   BackendFacade
	handlers []BinaryHandler
	gate     Gate
}

type converterKey struct {
	frontend testrun.FrontendKind
	backend  testrun.BackendKind
}

type binaryKey struct {
	backend testrun.BackendKind
	binary  testrun.BinaryKind
}

// Configuration is the validated, kind-indexed dispatch table built once
// per test configuration. Registration order is preserved so handler
// iteration stays deterministic.
type Configuration struct {
	frontends    []*frontendEntry
	backends     []*backendEntry
	binaries     []*binaryEntry
	frontendIdx  map[testrun.FrontendKind]*frontendEntry
	backendIdx   map[testrun.BackendKind]*backendEntry
	binaryIdx    map[binaryKey]*binaryEntry
	converterIdx map[converterKey]Converter
}

// NewConfiguration validates the declared registrations and builds the
// dispatch table. Nil facades, blank or duplicate kinds, converters over
// unregistered kinds and handlers whose kind does not match their facade
// are all construction errors.
func NewConfiguration(cfg Config) (*Configuration, error) {
	c := &Configuration{
		frontendIdx:  make(map[testrun.FrontendKind]*frontendEntry, len(cfg.Frontends)),
		backendIdx:   make(map[testrun.BackendKind]*backendEntry, len(cfg.Backends)),
		binaryIdx:    make(map[binaryKey]*binaryEntry, len(cfg.Binaries)),
		converterIdx: make(map[converterKey]Converter, len(cfg.Converters)),
	}

	for _, reg := range cfg.Frontends {
		if err := c.addFrontend(reg); err != nil {
			return nil, err
		}
	}
	if len(c.frontends) == 0 {
		return nil, fmt.Errorf("configuration: at least one frontend must be registered")
	}

	for _, reg := range cfg.Backends {
		if err := c.addBackend(reg); err != nil {
			return nil, err
		}
	}
	for _, conv := range cfg.Converters {
		if err := c.addConverter(conv); err != nil {
			return nil, err
		}
	}
	for _, reg := range cfg.Binaries {
		if err := c.addBinary(reg); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Configuration) addFrontend(reg FrontendRegistration) error {
	if reg.Facade == nil {
		return fmt.Errorf("configuration: frontend facade cannot be nil")
	}
	kind := reg.Facade.Kind()
	if kind == "" {
		return fmt.Errorf("configuration: frontend facade missing kind")
	}
	if _, exists := c.frontendIdx[kind]; exists {
		return fmt.Errorf("configuration: duplicate frontend kind %q", kind)
	}
	for _, h := range reg.Handlers {
		if h == nil {
			return fmt.Errorf("configuration: frontend %q: handler cannot be nil", kind)
		}
		if h.Kind() != kind {
			return fmt.Errorf("configuration: frontend %q: handler registered for kind %q", kind, h.Kind())
		}
	}
	entry := &frontendEntry{facade: reg.Facade, handlers: reg.Handlers, gate: reg.Gate}
	c.frontends = append(c.frontends, entry)
	c.frontendIdx[kind] = entry
	return nil
}

func (c *Configuration) addBackend(reg BackendRegistration) error {
	if reg.Kind == testrun.BackendNone {
		return fmt.Errorf("configuration: backend registration missing kind")
	}
	if _, exists := c.backendIdx[reg.Kind]; exists {
		return fmt.Errorf("configuration: duplicate backend kind %q", reg.Kind)
	}
	for _, h := range reg.Handlers {
		if h == nil {
			return fmt.Errorf("configuration: backend %q: handler cannot be nil", reg.Kind)
		}
		if h.Backend() != reg.Kind {
			return fmt.Errorf("configuration: backend %q: handler registered for kind %q", reg.Kind, h.Backend())
		}
	}
	entry := &backendEntry{kind: reg.Kind, handlers: reg.Handlers, gate: reg.Gate}
	c.backends = append(c.backends, entry)
	c.backendIdx[reg.Kind] = entry
	return nil
}

func (c *Configuration) addConverter(conv Converter) error {
	if conv == nil {
		return fmt.Errorf("configuration: converter cannot be nil")
	}
	key := converterKey{frontend: conv.Frontend(), backend: conv.Backend()}
	if _, ok := c.frontendIdx[key.frontend]; !ok {
		return fmt.Errorf("configuration: converter references unregistered frontend kind %q", key.frontend)
	}
	if _, ok := c.backendIdx[key.backend]; !ok {
		return fmt.Errorf("configuration: converter references unregistered backend kind %q", key.backend)
	}
	if _, exists := c.converterIdx[key]; exists {
		return fmt.Errorf("configuration: duplicate converter for frontend %q and backend %q", key.frontend, key.backend)
	}
	c.converterIdx[key] = conv
	return nil
}

func (c *Configuration) addBinary(reg BinaryRegistration) error {
	if reg.Facade == nil {
		return fmt.Errorf("configuration: backend facade cannot be nil")
	}
	key := binaryKey{backend: reg.Facade.Backend(), binary: reg.Facade.Produces()}
	if key.binary == "" {
		return fmt.Errorf("configuration: backend facade missing binary kind")
	}
	if _, ok := c.backendIdx[key.backend]; !ok {
		return fmt.Errorf("configuration: backend facade references unregistered backend kind %q", key.backend)
	}
	if _, exists := c.binaryIdx[key]; exists {
		return fmt.Errorf("configuration: duplicate backend facade for backend %q and binary kind %q", key.backend, key.binary)
	}
	for _, h := range reg.Handlers {
		if h == nil {
			return fmt.Errorf("configuration: binary kind %q: handler cannot be nil", key.binary)
		}
		if h.Kind() != key.binary {
			return fmt.Errorf("configuration: binary kind %q: handler registered for kind %q", key.binary, h.Kind())
		}
	}
	entry := &binaryEntry{facade: reg.Facade, handlers: reg.Handlers, gate: reg.Gate}
	c.binaries = append(c.binaries, entry)
	c.binaryIdx[key] = entry
	return nil
}

func (c *Configuration) frontendFor(kind testrun.FrontendKind) (*frontendEntry, error) {
	entry, ok := c.frontendIdx[kind]
	if !ok {
		return nil, fmt.Errorf("configuration: no frontend registered for kind %q", kind)
	}
	return entry, nil
}

func (c *Configuration) backendFor(kind testrun.BackendKind) (*backendEntry, error) {
	entry, ok := c.backendIdx[kind]
	if !ok {
		return nil, fmt.Errorf("configuration: no backend registered for kind %q", kind)
	}
	return entry, nil
}

func (c *Configuration) converterFor(frontend testrun.FrontendKind, backend testrun.BackendKind) (Converter, error) {
	conv, ok := c.converterIdx[converterKey{frontend: frontend, backend: backend}]
	if !ok {
		return nil, fmt.Errorf("configuration: no converter registered for frontend %q and backend %q", frontend, backend)
	}
	return conv, nil
}

func (c *Configuration) binaryFor(backend testrun.BackendKind, binary testrun.BinaryKind) (*binaryEntry, error) {
	entry, ok := c.binaryIdx[binaryKey{backend: backend, binary: binary}]
	if !ok {
		return nil, fmt.Errorf("configuration: no backend facade registered for backend %q and binary kind %q", backend, binary)
	}
	return entry, nil
}

func (e *frontendEntry) enabled(module testrun.Module) bool {
	return e.gate == nil || e.gate(module)
}

func (e *backendEntry) enabled(module testrun.Module) bool {
	return e.gate == nil || e.gate(module)
}

func (e *binaryEntry) enabled(module testrun.Module) bool {
	return e.gate == nil || e.gate(module)
}
