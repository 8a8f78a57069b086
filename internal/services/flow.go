package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Lllllllleong/qrawareness/internal/models"
	"github.com/Lllllllleong/qrawareness/internal/sessions"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	exportNote = "Dati raccolti per progetto educativo cybersecurity - Email NON salvata"

	maxConcurrentFlush = 4
)

// Archiver keeps a copy of a completed session's export.
type Archiver interface {
	Save(ctx context.Context, sessionID string, payload []byte) (string, error)
}

// LandRequest identifies the visitor opening the page.
type LandRequest struct {
	SessionID string
	UserAgent string
	Referer   string
}

// FlowService drives a visitor through welcome, profile, confirm and disclaimer.
// Every method returns the screen to show next; persistence problems never reach
// the caller.
type FlowService struct {
	store     *sessions.Store
	persister *Persister
	archive   Archiver
	logger    *zap.Logger
	now       func() time.Time
}

// NewFlowService wires the controller. archive may be nil.
func NewFlowService(store *sessions.Store, persister *Persister, archive Archiver, logger *zap.Logger) *FlowService {
	return &FlowService{
		store:     store,
		persister: persister,
		archive:   archive,
		logger:    logger,
		now:       time.Now,
	}
}

// Land resumes a live session or opens a new one, and returns the screen matching its
// progress. Ids this process does not hold (expired, swept, lost on restart or made up by
// the client) never name a new session: a fresh id is minted instead, so an existing row
// is never reused.
func (f *FlowService) Land(ctx context.Context, req LandRequest) (*models.ScreenResponse, error) {
	f.flushAbandoned(ctx)

	if sessions.ValidID(req.SessionID) {
		if rec, ok := f.store.Resume(req.SessionID); ok {
			return screenFor(rec), nil
		}
		f.logger.Debug("Unknown session id; starting a new session.", zap.String("staleSessionId", req.SessionID))
	}

	id := sessions.NewID()
	tracked := !IsAutomatedVisitor(req.UserAgent, req.Referer)
	rec, _ := f.store.GetOrCreate(id, req.UserAgent, tracked)

	f.logger.Info("Page opened.", zap.String("sessionId", id), zap.Bool("tracked", tracked))
	f.persist(ctx, rec)
	return screenFor(rec), nil
}

// SubmitQRLocation completes step 1: where the code was found, plus consent.
func (f *FlowService) SubmitQRLocation(ctx context.Context, sessionID string, req models.QRLocationRequest) (*models.ScreenResponse, error) {
	location := strings.TrimSpace(req.QRLocation)
	if !req.Consent {
		return nil, &ValidationError{Message: "Devi accettare il trattamento dati per continuare"}
	}
	if location == "" {
		return nil, &ValidationError{Message: "Indica dove hai trovato il QR code per continuare"}
	}
	return f.advance(ctx, sessionID, models.StateFormStarted, sessions.Patch{QRLocation: location})
}

// SubmitProfile completes step 2: the demographic questions.
func (f *FlowService) SubmitProfile(ctx context.Context, sessionID string, req models.ProfileRequest) (*models.ScreenResponse, error) {
	patch := sessions.Patch{
		AgeRange:      strings.TrimSpace(req.AgeRange),
		Gender:        strings.TrimSpace(req.Gender),
		BirthProvince: strings.TrimSpace(req.BirthProvince),
		Education:     strings.TrimSpace(req.Education),
	}
	if patch.AgeRange == "" || patch.Gender == "" || patch.BirthProvince == "" || patch.Education == "" {
		return nil, &ValidationError{Message: "Completa tutti i campi per continuare"}
	}
	return f.advance(ctx, sessionID, models.StateStep2, patch)
}

// Confirm completes step 3. The email is validated and then dropped; it is never
// stored or logged.
func (f *FlowService) Confirm(ctx context.Context, sessionID string, req models.ConfirmRequest) (*models.ScreenResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, &ValidationError{Message: "Inserisci la tua email per ricevere il buono Amazon"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &ValidationError{Message: "Inserisci un indirizzo email valido"}
	}

	return f.advance(ctx, sessionID, models.StateCompleted, sessions.Patch{})
}

// Export returns the downloadable report of everything the session recorded.
func (f *FlowService) Export(sessionID string) (*models.SessionExport, error) {
	rec, ok := f.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("export %s: %w", sessionID, ErrSessionNotFound)
	}
	return &models.SessionExport{
		Record:     rec,
		ExportedAt: f.now(),
		Note:       exportNote,
	}, nil
}

// Reset starts the demo again under a brand-new session id.
func (f *FlowService) Reset(ctx context.Context, req LandRequest) (*models.ScreenResponse, error) {
	req.SessionID = ""
	return f.Land(ctx, req)
}

// advance moves the session into target. Re-submitting a step that was already
// passed is a no-op that returns the current screen; skipping ahead is rejected.
func (f *FlowService) advance(ctx context.Context, sessionID string, target models.State, patch sessions.Patch) (*models.ScreenResponse, error) {
	f.flushAbandoned(ctx)
	logCtx := f.logger.With(zap.String("sessionId", sessionID), zap.Stringer("target", target))

	rec, ok := f.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("advance %s: %w", sessionID, ErrSessionNotFound)
	}
	if rec.State() >= target {
		logCtx.Debug("Step already recorded; ignoring resubmission.")
		return screenFor(rec), nil
	}
	if rec.State() != target-1 {
		return nil, fmt.Errorf("advance %s from %s to %s: %w", sessionID, rec.State(), target, ErrStepOutOfOrder)
	}

	patch.Reach = target
	rec, changed, err := f.store.Update(sessionID, patch)
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return nil, fmt.Errorf("advance %s: %w", sessionID, ErrSessionNotFound)
	case errors.Is(err, sessions.ErrSkippedState):
		return nil, fmt.Errorf("advance %s: %w", sessionID, ErrStepOutOfOrder)
	case err != nil:
		return nil, err
	}

	logCtx.Info("Step recorded.")
	if changed {
		f.persist(ctx, rec)
	}
	if target == models.StateCompleted {
		f.archiveExport(ctx, rec)
	}
	return screenFor(rec), nil
}

// flushAbandoned persists the sessions that idled out since the last request. The whole
// flush shares one write timeout, so the request that triggers it waits at most that long.
func (f *FlowService) flushAbandoned(ctx context.Context) {
	abandoned := f.store.Sweep()
	if len(abandoned) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, f.persister.timeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(maxConcurrentFlush)
	for _, rec := range abandoned {
		f.logger.Info("Session abandoned.", zap.String("sessionId", rec.SessionID), zap.Stringer("state", rec.State()))
		g.Go(func() error {
			f.persist(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (f *FlowService) persist(ctx context.Context, rec models.Record) {
	// Errors are logged by the persister; the visitor flow continues regardless.
	_ = f.persister.Save(ctx, rec)
}

func (f *FlowService) archiveExport(ctx context.Context, rec models.Record) {
	if f.archive == nil || !rec.Tracked {
		return
	}
	logCtx := f.logger.With(zap.String("sessionId", rec.SessionID))

	payload, err := json.MarshalIndent(models.SessionExport{Record: rec, ExportedAt: f.now(), Note: exportNote}, "", "  ")
	if err != nil {
		logCtx.Debug("Failed to encode export for archiving.", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, f.persister.timeout)
	defer cancel()
	uri, err := f.archive.Save(ctx, rec.SessionID, payload)
	if err != nil {
		logCtx.Debug("Failed to archive export.", zap.Error(err))
		return
	}
	logCtx.Info("Export archived.", zap.String("uri", uri))
}

// screenFor maps the session's state to the screen that comes next.
func screenFor(rec models.Record) *models.ScreenResponse {
	resp := &models.ScreenResponse{SessionID: rec.SessionID}
	switch rec.State() {
	case models.StateLanded:
		resp.Screen, resp.Step = models.ScreenWelcome, 1
	case models.StateFormStarted:
		resp.Screen, resp.Step = models.ScreenProfile, 2
	case models.StateStep2:
		resp.Screen, resp.Step = models.ScreenConfirm, 3
	default:
		resp.Screen, resp.Step = models.ScreenDisclaimer, 4
		resp.Collected = collectedFields(rec)
	}
	resp.Progress = progress(resp.Step)
	return resp
}

func progress(step int) int {
	const totalSteps = 3
	if step > totalSteps {
		step = totalSteps
	}
	return step * 100 / totalSteps
}

func collectedFields(rec models.Record) []models.CollectedField {
	opened := ""
	if rec.OpenedAt != nil {
		opened = rec.OpenedAt.Format(models.CreationLayout)
	}
	return []models.CollectedField{
		{Label: "ID Sessione", Value: rec.SessionID},
		{Label: "Apertura pagina", Value: opened},
		{Label: "Dove trovato QR Code", Value: rec.QRLocation},
		{Label: "Fascia d'età", Value: rec.AgeRange},
		{Label: "Sesso", Value: rec.Gender},
		{Label: "Provincia di nascita", Value: rec.BirthProvince},
		{Label: "Titolo di studio", Value: rec.Education},
		{Label: "Email", Value: "SÌ (avresti dato anche quella!)"},
	}
}
