package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teg-intake-api/internal/dto"
	"github.com/noah-isme/teg-intake-api/internal/models"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
)

// ClosedNotice is shown when no procedure is open.
const ClosedNotice = "No hay procesos de inscripción abiertos actualmente."

type windowStore interface {
	Load(ctx context.Context) (models.WindowSet, error)
	Save(ctx context.Context, set models.WindowSet) error
}

// WindowService reads and updates enrollment windows and decides which
// procedures are open today.
type WindowService struct {
	store     windowStore
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	programs  []string
	now       func() time.Time
}

// NewWindowService constructs a WindowService. Dates are evaluated in loc.
func NewWindowService(store windowStore, validate *validator.Validate, logger *zap.Logger, loc *time.Location, programs []string) *WindowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &WindowService{
		store:     store,
		validator: validate,
		logger:    logger,
		location:  loc,
		programs:  append([]string(nil), programs...),
		now:       time.Now,
	}
}

// Today returns the current date in the service's timezone.
func (s *WindowService) Today() time.Time {
	return models.DateOf(s.now().In(s.location))
}

// Load never fails: a missing or unreadable store yields the defaults.
func (s *WindowService) Load(ctx context.Context) models.WindowSet {
	set, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("enrollment windows unavailable, using defaults", zap.Error(err))
		return models.DefaultWindows(s.Today())
	}
	return set
}

// AvailableProcedures returns the procedures open today, in fixed order.
func (s *WindowService) AvailableProcedures(ctx context.Context) []models.Process {
	return models.AvailableProcedures(s.Load(ctx), s.Today())
}

// Programs lists the academic programs accepted by the form.
func (s *WindowService) Programs() []string {
	return append([]string(nil), s.programs...)
}

// Status describes what the student form may offer right now.
func (s *WindowService) Status(ctx context.Context) dto.EnrollmentStatusResponse {
	open := s.AvailableProcedures(ctx)
	resp := dto.EnrollmentStatusResponse{
		Open:       len(open) > 0,
		Today:      s.Today().Format(models.DateLayout),
		Procedures: make([]string, 0, len(open)),
		Programs:   s.Programs(),
		Modalities: []string{string(models.ModalityIndividual), string(models.ModalityPaired)},
	}
	for _, p := range open {
		resp.Procedures = append(resp.Procedures, string(p))
	}
	if !resp.Open {
		resp.Notice = ClosedNotice
	}
	return resp
}

// List returns both windows for the admin panel.
func (s *WindowService) List(ctx context.Context) dto.WindowsResponse {
	return s.describe(s.Load(ctx))
}

// Update replaces both windows. Inverted ranges are stored as given and
// reported back as warnings.
func (s *WindowService) Update(ctx context.Context, req dto.UpdateWindowsRequest) (*dto.WindowsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment windows payload")
	}

	project, err := windowFromInput(models.ProcessProject, req.Project)
	if err != nil {
		return nil, err
	}
	thesis, err := windowFromInput(models.ProcessThesis, req.Thesis)
	if err != nil {
		return nil, err
	}
	set := models.WindowSet{Project: project, Thesis: thesis}

	if err := s.store.Save(ctx, set); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrStorageWrite, err, "failed to save enrollment windows")
	}

	s.logger.Info("enrollment windows updated",
		zap.Bool("proyecto_active", project.Active),
		zap.Bool("teg_active", thesis.Active),
	)
	resp := s.describe(set)
	return &resp, nil
}

func (s *WindowService) describe(set models.WindowSet) dto.WindowsResponse {
	today := s.Today()
	resp := dto.WindowsResponse{Today: today.Format(models.DateLayout)}
	for _, w := range set.List() {
		resp.Windows = append(resp.Windows, dto.WindowItem{
			Process: string(w.Process),
			Active:  w.Active,
			Start:   w.Start.Format(models.DateLayout),
			End:     w.End.Format(models.DateLayout),
			Open:    w.IsOpen(today),
		})
		if w.Inverted() {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s: la fecha de inicio es posterior a la fecha de fin; el proceso nunca estará abierto", w.Process))
		}
	}
	return resp
}

func windowFromInput(p models.Process, in dto.WindowInput) (models.EnrollmentWindow, error) {
	start, err := models.ParseDate(in.Start)
	if err != nil {
		return models.EnrollmentWindow{}, appErrors.Validation("invalid enrollment window date", []appErrors.FieldError{{Field: string(p) + ".start", Message: err.Error()}})
	}
	end, err := models.ParseDate(in.End)
	if err != nil {
		return models.EnrollmentWindow{}, appErrors.Validation("invalid enrollment window date", []appErrors.FieldError{{Field: string(p) + ".end", Message: err.Error()}})
	}
	return models.EnrollmentWindow{Process: p, Active: in.Active, Start: start, End: end}, nil
}
