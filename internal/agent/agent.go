package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	"golang.org/x/sync/errgroup"

	"github.com/boutdepapier/dynamicfilters/internal/api"
	config "github.com/boutdepapier/dynamicfilters/internal/config/server"
	"github.com/boutdepapier/dynamicfilters/internal/filters"
	"github.com/boutdepapier/dynamicfilters/internal/scheduler"
	"github.com/boutdepapier/dynamicfilters/pkg/db/store"
	"github.com/boutdepapier/dynamicfilters/pkg/filter"
	"github.com/boutdepapier/dynamicfilters/pkg/log"
	"github.com/boutdepapier/dynamicfilters/pkg/query"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

type FiltersAgent struct {
	mutex sync.RWMutex

	cfg *config.BaseServerConfig
	sc  *container.ServiceContainer
	log log.LoggerService

	store    *store.GormStore
	registry *schema.Registry
	service  *filters.Service
	server   *http.Server
}

func NewAgent(cfg *config.BaseServerConfig) *FiltersAgent {
	return &FiltersAgent{
		cfg:      cfg,
		sc:       container.NewServiceContainer(),
		log:      log.NewLoggerService("agent", cfg.Log),
		registry: schema.NewRegistry(),
	}
}

func (fa *FiltersAgent) setupServices(ctx context.Context) error {
	errs := container.Errors{}

	fa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](fa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(fa.log)))

	st, err := OpenStore(ctx, fa.cfg.Metadata)
	if err != nil {
		return err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return fmt.Errorf("failed to migrate filter store: %w", err)
	}
	fa.store = st

	fa.log.Debug("Registering 'FilterStore'...")
	errs.Add(container.Register[store.GormStore](fa.sc,
		container.With[store.FilterStore](),
		container.WithInstance(st)))

	if err := errs.Errors(); err != nil {
		return err
	}

	storeLog, err := log.ResolveNamed(ctx, fa.sc, "store")
	if err != nil {
		return err
	}
	storeLog.Info("Connected to %s filter store", st.Dialect())

	bundled := query.NewBundledRegistry()
	if err := fa.loadEntities(ctx, bundled); err != nil {
		return err
	}

	queryLog, err := log.ResolveNamed(ctx, fa.sc, "query")
	if err != nil {
		return err
	}
	executor := query.NewExecutor(st.DB(), fa.registry, query.ExecutorOptions{
		Dialect: st.Dialect(),
		Bundled: bundled,
		Logger:  queryLog,
	})

	fa.log.Debug("Registering 'ChoiceSource'...")
	errs.Add(container.Register[query.Executor](fa.sc,
		container.With[filter.ChoiceSource](),
		container.WithInstance(executor)))

	ok, resolved := fa.sc.ResolveByType(ctx, reflect.TypeOf((*store.FilterStore)(nil)).Elem())
	if !ok {
		return fmt.Errorf("failed to resolve FilterStore")
	}
	ok, choices := fa.sc.ResolveByType(ctx, reflect.TypeOf((*filter.ChoiceSource)(nil)).Elem())
	if !ok {
		return fmt.Errorf("failed to resolve ChoiceSource")
	}

	filtersLog, err := log.ResolveNamed(ctx, fa.sc, "filters")
	if err != nil {
		return err
	}
	fa.service = filters.NewService(resolved.(store.FilterStore), fa.registry, executor, filters.ServiceOptions{
		Params: filter.ParamNames{
			Add:  fa.cfg.Filters.AddParam,
			Load: fa.cfg.Filters.LoadParam,
			Save: fa.cfg.Filters.SaveParam,
		},
		Logger:  filtersLog,
		Choices: choices.(filter.ChoiceSource),
	})

	httpLog, err := log.ResolveNamed(ctx, fa.sc, "http")
	if err != nil {
		return err
	}
	fa.server = &http.Server{
		Addr: fa.cfg.HTTP.Address,
		Handler: api.NewRouter(fa.service, fa.registry, api.Options{
			Prefix:      fa.cfg.HTTP.Prefix,
			UserHeader:  fa.cfg.HTTP.UserHeader,
			PageSize:    fa.cfg.Filters.PageSize,
			Logger:      httpLog,
			LogRequests: fa.cfg.Log.Requests,
		}),
		ReadTimeout:  parseDuration(fa.cfg.HTTP.ReadTimeout, 15*time.Second),
		WriteTimeout: parseDuration(fa.cfg.HTTP.WriteTimeout, 30*time.Second),
	}

	return errs.Errors()
}

// loadEntities fills the entity registry from the configured file and, in
// demo mode, from the scheduler application.
func (fa *FiltersAgent) loadEntities(ctx context.Context, bundled *query.BundledRegistry) error {
	if path := fa.cfg.Filters.EntitiesFile; path != "" {
		if err := fa.registry.LoadFile(path); err != nil {
			return err
		}
		fa.log.Info("Loaded entity types from '%s'", path)
	}

	if fa.cfg.Filters.Demo {
		if err := scheduler.Register(fa.registry); err != nil {
			return err
		}
		if err := scheduler.RegisterBundled(bundled, time.Now); err != nil {
			return err
		}
		if err := scheduler.Migrate(ctx, fa.store.DB()); err != nil {
			return err
		}
		if err := scheduler.Seed(ctx, fa.store.DB(), time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to seed scheduler tables: %w", err)
		}
		fa.log.Info("Registered demo scheduler entities")
	}

	if len(fa.registry.Entities()) == 0 {
		fa.log.Warn("No entity types registered; set filters.entities_file or filters.demo")
	}
	return nil
}

func (fa *FiltersAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	fa.mutex.Lock()

	if err := fa.setupServices(ctx); err != nil {
		fa.mutex.Unlock()
		if fa.store != nil {
			fa.store.Close()
		}
		return err
	}

	fa.mutex.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fa.log.Info("Listening on %s", fa.server.Addr)
		if err := fa.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return fa.shutdown()
	})

	return g.Wait()
}

func (fa *FiltersAgent) shutdown() error {
	fa.mutex.Lock()
	defer fa.mutex.Unlock()

	timeout := parseDuration(fa.cfg.ShutdownTimeout, 60*time.Second)

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fa.log.Info("Shutting down...")

	var errs []error
	if err := fa.server.Shutdown(shutdown); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown http server: %w", err))
	}
	if err := fa.sc.Cleanup(shutdown); err != nil {
		errs = append(errs, fmt.Errorf("failed to complete service container cleanup: %w", err))
	}
	if err := fa.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close filter store: %w", err))
	}
	return errors.Join(errs...)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
