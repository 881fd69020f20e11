// Package provider holds the initialized backend handles (config, logger,
// database, realtime store, error bus) as a process-wide bundle. Exactly one
// initialization produces the bundle; later calls return the same instance.
// Accessing a handle before Init is a wiring mistake and fails loudly.
package provider

import (
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/errbus"
	"github.com/recedu/reconline/core/realtime"
)

// Bundle is the set of initialized backend handles shared app-wide. It is
// read-only after Init.
type Bundle struct {
	Conf   *core.Config
	Logger core.Logger
	DB     *sqlx.DB
	Store  realtime.Store
	Bus    *errbus.Bus
}

// Options configures Init. OpenDB may be nil for processes that do not touch
// the database (tests, tooling); Store defaults to an in-process hub.
type Options struct {
	Conf   *core.Config
	Logger core.Logger
	OpenDB func(*core.Config) (*sqlx.DB, error)
	Store  realtime.Store
}

var (
	mu     sync.Mutex
	bundle *Bundle
)

// Init builds the bundle once. Calling it again returns the already
// initialized bundle untouched, since backend clients must not be
// constructed twice for the same identity.
func Init(opts Options) (*Bundle, error) {
	mu.Lock()
	defer mu.Unlock()

	if bundle != nil {
		return bundle, nil
	}

	c := dig.New()

	provide := func(constructor interface{}) error {
		return errors.Wrap(c.Provide(constructor), "providing dependency")
	}

	if err := provide(func() *core.Config { return opts.Conf }); err != nil {
		return nil, err
	}
	if err := provide(func() core.Logger { return opts.Logger }); err != nil {
		return nil, err
	}
	if err := provide(func(conf *core.Config) (*sqlx.DB, error) {
		if opts.OpenDB == nil {
			return nil, nil
		}
		return opts.OpenDB(conf)
	}); err != nil {
		return nil, err
	}
	if err := provide(func() realtime.Store {
		if opts.Store != nil {
			return opts.Store
		}
		return realtime.NewHub()
	}); err != nil {
		return nil, err
	}
	if err := provide(errbus.NewBus); err != nil {
		return nil, err
	}

	var b Bundle
	err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		db *sqlx.DB,
		store realtime.Store,
		bus *errbus.Bus,
	) {
		b = Bundle{Conf: conf, Logger: logger, DB: db, Store: store, Bus: bus}
	})
	if err != nil {
		return nil, errors.Wrap(err, "building bundle")
	}

	bundle = &b
	return bundle, nil
}

// Reset drops the bundle. Test isolation only.
func Reset() {
	mu.Lock()
	bundle = nil
	mu.Unlock()
}

func get() *Bundle {
	mu.Lock()
	defer mu.Unlock()
	if bundle == nil {
		panic("provider: not initialized; call provider.Init first")
	}
	return bundle
}

// Config returns the process configuration. Panics before Init.
func Config() *core.Config { return get().Conf }

// Logger returns the process logger. Panics before Init.
func Logger() core.Logger { return get().Logger }

// DB returns the database handle. Panics before Init.
func DB() *sqlx.DB { return get().DB }

// Store returns the realtime store handle. Panics before Init.
func Store() realtime.Store { return get().Store }

// Bus returns the permission-error bus. Panics before Init.
func Bus() *errbus.Bus { return get().Bus }
