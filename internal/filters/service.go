// Package filters orchestrates the filter actions of an entity listing:
// rendering, saving, presets and clearing.
package filters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
	"github.com/boutdepapier/dynamicfilters/pkg/db/store"
	ferrors "github.com/boutdepapier/dynamicfilters/pkg/errors"
	"github.com/boutdepapier/dynamicfilters/pkg/filter"
	"github.com/boutdepapier/dynamicfilters/pkg/log"
	"github.com/boutdepapier/dynamicfilters/pkg/query"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

type Service struct {
	store    store.FilterStore
	registry *schema.Registry
	executor *query.Executor
	choices  filter.ChoiceSource
	params   filter.ParamNames
	logger   log.LoggerService
}

type ServiceOptions struct {
	Params filter.ParamNames
	Logger log.LoggerService
	// Choices lists the related rows of relation fields. Defaults to the
	// executor.
	Choices filter.ChoiceSource
}

func NewService(st store.FilterStore, registry *schema.Registry, executor *query.Executor, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Params == (filter.ParamNames{}) {
		opts.Params = filter.DefaultParamNames()
	}
	if opts.Choices == nil && executor != nil {
		opts.Choices = executor
	}
	return &Service{
		store:    st,
		registry: registry,
		executor: executor,
		choices:  opts.Choices,
		params:   opts.Params,
		logger:   opts.Logger,
	}
}

// Params returns the request parameter names of the filter actions.
func (s *Service) Params() filter.ParamNames {
	return s.params
}

// RequestOptions are the per-request settings of a listing.
type RequestOptions struct {
	// DisableFilters lists the entity without applying the stored filters.
	DisableFilters bool
	// Now fixes the clock of relative date operators.
	Now    time.Time
	Limit  int
	Offset int
}

// Target identifies the user and the entity listing an action applies to.
type Target struct {
	UserID    string
	Namespace string
	Entity    string
	// ViewPath defaults to the admin listing path of the entity.
	ViewPath string
}

type target struct {
	Target
	entity *schema.EntityType
}

func (s *Service) resolve(t Target) (*target, error) {
	if t.UserID == "" {
		return nil, ferrors.ErrValidation("a user is required")
	}
	entity, err := s.registry.Lookup(t.Namespace, t.Entity)
	if err != nil {
		return nil, err
	}
	if t.ViewPath == "" {
		t.ViewPath = entity.ViewPath()
	}
	return &target{Target: t, entity: entity}, nil
}

// defaultSet returns the default filter set of the target, seeding a newly
// created one with the configured list filters, or with the first available
// field when none are configured.
func (s *Service) defaultSet(ctx context.Context, t *target) (*models.FilterSet, error) {
	set, created, err := s.store.GetOrCreateDefault(ctx, t.UserID, t.ViewPath, t.entity.Namespace, t.entity.Name)
	if err != nil {
		return nil, err
	}
	if !created {
		return set, nil
	}

	if err := s.seed(ctx, t.entity, set); err != nil {
		return nil, err
	}
	return s.store.GetFilterSet(ctx, set.ID, t.UserID)
}

func (s *Service) seed(ctx context.Context, entity *schema.EntityType, set *models.FilterSet) error {
	seeded := 0
	for _, field := range entity.ListFilter {
		if _, err := s.registry.ResolvePath(entity, field); err != nil {
			s.logger.Warn("Ignoring list filter '%s' of '%s': %v", field, entity, err)
			continue
		}
		if err := s.store.CreateCriterion(ctx, &models.Criterion{FilterSetID: set.ID, Field: field}); err != nil {
			return fmt.Errorf("failed to seed criterion '%s': %w", field, err)
		}
		seeded++
	}

	for _, id := range entity.BundledFilters {
		i := strings.LastIndex(id, ".")
		if i <= 0 || i == len(id)-1 {
			s.logger.Warn("Ignoring bundled filter '%s' of '%s': expected module.Class", id, entity)
			continue
		}
		bundled := &models.BundledCriterion{FilterSetID: set.ID, ModuleName: id[:i], ClassName: id[i+1:]}
		if s.executor != nil {
			if descriptor, ok := s.executor.Bundled().Describe(bundled.ModuleName, bundled.ClassName); ok {
				bundled.FieldName = descriptor.ParameterName()
			}
		}
		if err := s.store.CreateBundled(ctx, bundled); err != nil {
			return fmt.Errorf("failed to seed bundled filter '%s': %w", id, err)
		}
		seeded++
	}

	if seeded > 0 {
		return nil
	}

	available := entity.AvailableChoices(nil)
	if len(available) == 0 {
		return nil
	}
	return s.store.CreateCriterion(ctx, &models.Criterion{FilterSetID: set.ID, Field: available[0].Value})
}

func (s *Service) buildForm(ctx context.Context, t *target, set *models.FilterSet, sub *filter.Submission) (*filter.Form, error) {
	presets, err := s.store.ListPresets(ctx, t.UserID, t.entity.Namespace, t.entity.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}

	in := filter.FormInput{
		Set:        set,
		Entity:     t.entity,
		Registry:   s.registry,
		Submission: sub,
		Presets:    presets,
		Choices:    s.choices,
	}
	if s.executor != nil {
		in.Bundled = s.executor.Bundled()
	}
	return filter.BuildForm(ctx, in)
}

func (s *Service) catalog() filter.BundledCatalog {
	if s.executor == nil {
		return nil
	}
	return s.executor.Bundled()
}

// applyPlan persists every step of plan independently. Failures do not roll
// back steps already applied; they are joined and returned at the end.
func (s *Service) applyPlan(ctx context.Context, set *models.FilterSet, plan filter.Plan) error {
	var errs []error

	for i := range plan.Upserts {
		criterion := plan.Upserts[i]
		if err := s.store.UpsertCriterion(ctx, &criterion); err != nil {
			errs = append(errs, fmt.Errorf("failed to save criterion '%s': %w", criterion.Field, err))
		}
	}
	for _, id := range plan.Deletes {
		if err := s.store.DeleteCriterion(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete criterion %d: %w", id, err))
		}
	}
	for i := range plan.BundledUpserts {
		bundled := plan.BundledUpserts[i]
		if err := s.store.UpsertBundled(ctx, &bundled); err != nil {
			errs = append(errs, fmt.Errorf("failed to save bundled filter '%s': %w", bundled.Identity(), err))
		}
	}
	for _, id := range plan.BundledDeletes {
		if err := s.store.DeleteBundled(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete bundled filter %d: %w", id, err))
		}
	}

	if err := set.SetOrdering(plan.Ordering); err != nil {
		errs = append(errs, err)
	} else if err := s.store.SaveFilterSet(ctx, set); err != nil {
		errs = append(errs, fmt.Errorf("failed to save filter set %d: %w", set.ID, err))
	}

	return errors.Join(errs...)
}

// Summary describes a filter set in responses.
type Summary struct {
	ID        uint     `json:"id"`
	Name      string   `json:"name"`
	IsDefault bool     `json:"is_default"`
	ViewPath  string   `json:"view_path"`
	Ordering  []string `json:"ordering,omitempty"`
	Criteria  int      `json:"criteria"`
	Bundled   int      `json:"bundled"`
}

func Summarize(set *models.FilterSet) Summary {
	return Summary{
		ID:        set.ID,
		Name:      set.VerboseName(),
		IsDefault: set.IsDefault,
		ViewPath:  set.ViewPath,
		Ordering:  set.OrderingFields(),
		Criteria:  len(set.Criteria),
		Bundled:   len(set.Bundled),
	}
}

// Listing is the filtered listing of an entity.
type Listing struct {
	FilterSet Summary           `json:"filter_set"`
	Include   filter.Predicates `json:"include"`
	Exclude   filter.Predicates `json:"exclude"`
	Rows      []map[string]any  `json:"rows"`
	Count     int64             `json:"count"`
	Form      *filter.Form      `json:"form"`
	Warnings  []string          `json:"warnings,omitempty"`
	Links     Links             `json:"links"`
}

// Listing renders the entity listing through the default filter set of the
// user, creating it on first access.
func (s *Service) Listing(ctx context.Context, req Target, opts RequestOptions, links Links) (*Listing, error) {
	t, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	set, err := s.defaultSet(ctx, t)
	if err != nil {
		return nil, err
	}

	compiled := filter.Compile(set, t.entity, s.registry, filter.CompileOptions{
		Now:    opts.Now,
		Logger: s.logger,
	})

	listing := &Listing{
		FilterSet: Summarize(set),
		Include:   compiled.Include,
		Exclude:   compiled.Exclude,
		Warnings:  compiled.Warnings,
		Links:     links.ForSet(set.ID),
	}

	if s.executor != nil {
		applied, appliedSet := compiled, set
		if opts.DisableFilters {
			applied, appliedSet = filter.Result{}, nil
		}
		listing.Rows, err = s.executor.List(ctx, t.entity, appliedSet, applied, query.ListOptions{
			Limit:  opts.Limit,
			Offset: opts.Offset,
		})
		if err != nil {
			return nil, err
		}
		listing.Count, err = s.executor.Count(ctx, t.entity, appliedSet, applied)
		if err != nil {
			return nil, err
		}
	}

	listing.Form, err = s.buildForm(ctx, t, set, nil)
	if err != nil {
		return nil, err
	}

	for _, warning := range listing.Warnings {
		s.logger.Debug("Filter set %d of '%s': %s", set.ID, t.UserID, warning)
	}
	return listing, nil
}

// SaveResponse is the result of the save action.
type SaveResponse struct {
	Success  bool         `json:"success"`
	Response *filter.Form `json:"response,omitempty"`
}

// SaveFilter handles the save action: it activates a preset when requested,
// renders the form with an added field, or persists the submitted form.
func (s *Service) SaveFilter(ctx context.Context, req Target, values url.Values) (*SaveResponse, error) {
	t, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	sub := filter.ParseSubmission(values, s.params)

	if sub.Load != "" {
		id, err := strconv.ParseUint(sub.Load, 10, 64)
		if err != nil {
			return nil, ferrors.ErrNotFound("filter set '%s' not found", sub.Load)
		}
		if err := s.store.ActivatePreset(ctx, uint(id), t.UserID, t.entity.Namespace, t.entity.Name); err != nil {
			return nil, err
		}
		s.logger.Info("Activated preset %d of '%s' on '%s'", id, t.UserID, t.entity)

		// The preset keeps its own view path; listings follow the target one.
		if err := s.adoptViewPath(ctx, t, uint(id)); err != nil {
			return nil, err
		}
	}

	set, err := s.defaultSet(ctx, t)
	if err != nil {
		return nil, err
	}

	response := &SaveResponse{Success: true}

	if sub.Add != "" {
		response.Response, err = s.buildForm(ctx, t, set, sub)
		if err != nil {
			return nil, err
		}
		return response, nil
	}

	if sub.Save {
		plan := filter.PlanSave(set, t.entity, s.registry, sub, s.catalog())
		if err := s.applyPlan(ctx, set, plan); err != nil {
			s.logger.Error("Failed to save filter set %d: %v", set.ID, err)

			reloaded, loadErr := s.store.GetFilterSet(ctx, set.ID, t.UserID)
			if loadErr != nil {
				return nil, errors.Join(err, loadErr)
			}
			form, formErr := s.buildForm(ctx, t, reloaded, sub)
			if formErr != nil {
				return nil, formErr
			}
			form.Errors = errorMessages(err)
			response.Success = false
			response.Response = form
		}
	}

	return response, nil
}

// errorMessages splits a joined error into its messages.
func errorMessages(err error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	var messages []string
	for _, e := range joined.Unwrap() {
		messages = append(messages, e.Error())
	}
	return messages
}

func (s *Service) adoptViewPath(ctx context.Context, t *target, id uint) error {
	preset, err := s.store.GetFilterSet(ctx, id, t.UserID)
	if err != nil {
		return err
	}
	if preset.ViewPath == t.ViewPath {
		return nil
	}
	preset.ViewPath = t.ViewPath
	return s.store.SaveFilterSet(ctx, preset)
}

// PresetResponse is the result of the preset creation action. Created is nil
// while the form is still being composed.
type PresetResponse struct {
	Form    *filter.Form `json:"form,omitempty"`
	Created *Summary     `json:"created,omitempty"`
}

// AddPreset composes a new named preset in the temporary filter set of the
// user. A submission naming a field to add renders the form; any other bound
// submission validates and saves the preset.
func (s *Service) AddPreset(ctx context.Context, req Target, values url.Values) (*PresetResponse, error) {
	t, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	temporary, err := s.store.GetOrCreateTemporary(ctx, t.UserID, t.entity.Namespace, t.entity.Name)
	if err != nil {
		return nil, err
	}

	sub := filter.ParseSubmission(values, s.params)
	if !sub.Bound || sub.Add != "" {
		form, err := s.buildForm(ctx, t, temporary, sub)
		if err != nil {
			return nil, err
		}
		return &PresetResponse{Form: form}, nil
	}

	if err := filter.ValidateNewPreset(sub); err != nil {
		return nil, err
	}

	plan := filter.PlanSave(temporary, t.entity, s.registry, sub, s.catalog())
	temporary.SetName(sub.Name)
	temporary.ViewPath = t.ViewPath
	temporary.IsDefault = false
	if err := s.applyPlan(ctx, temporary, plan); err != nil {
		return nil, err
	}

	preset, err := s.store.GetFilterSet(ctx, temporary.ID, t.UserID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Created preset %d '%s' of '%s' on '%s'", preset.ID, sub.Name, t.UserID, t.entity)

	summary := Summarize(preset)
	return &PresetResponse{Created: &summary}, nil
}

// DeletePreset deletes a filter set owned by the user.
func (s *Service) DeletePreset(ctx context.Context, userID string, id uint) error {
	if userID == "" {
		return ferrors.ErrValidation("a user is required")
	}
	if err := s.store.DeleteFilterSet(ctx, id, userID); err != nil {
		return err
	}
	s.logger.Info("Deleted filter set %d of '%s'", id, userID)
	return nil
}

// ClearFilter removes every criterion of the default filter set.
func (s *Service) ClearFilter(ctx context.Context, req Target) error {
	t, err := s.resolve(req)
	if err != nil {
		return err
	}

	set, err := s.store.GetDefault(ctx, t.UserID, t.ViewPath)
	if err != nil {
		return err
	}
	return s.store.ClearFilterSet(ctx, set.ID)
}

// Validate returns the schema drift warnings of a filter set of the user.
func (s *Service) Validate(ctx context.Context, userID string, id uint) ([]string, error) {
	set, err := s.store.GetFilterSet(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	entity, err := s.registry.Lookup(set.Namespace, set.EntityName)
	if err != nil {
		return nil, err
	}
	return filter.Validate(set, entity, s.registry), nil
}
