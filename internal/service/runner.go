package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sungho-yun/gapsim/internal/domain"
	"github.com/sungho-yun/gapsim/internal/household"
	"github.com/sungho-yun/gapsim/internal/store"
)

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrRecordNotFound   = errors.New("interaction record not found")
	ErrPersonNotFound   = errors.New("person not found")
	ErrRunNotStartable  = errors.New("run cannot be started in its current status")
	ErrRunNotObservable = errors.New("run is not ready for the observer pass")
	ErrHouseholdMissing = errors.New("template name or inline household is required")
	ErrInvalidRunInput  = errors.New("invalid run input")
	ErrBadTickMinutes   = errors.New("tick minutes must evenly divide an hour")
	ErrCircuitOpen      = errors.New("circuit breaker tripped: too many consecutive cell failures")
)

// breaker trips after a configured number of consecutive cell failures
// anywhere in the run. Any success resets the streak; threshold 0 disables
// the breaker.
type breaker struct {
	mu        sync.Mutex
	threshold int
	streak    int
}

func newBreaker(threshold int) *breaker {
	return &breaker{threshold: threshold}
}

func (b *breaker) observe(failed bool) (tripped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !failed {
		b.streak = 0
		return false
	}
	b.streak++
	return b.threshold > 0 && b.streak >= b.threshold
}

// RunnerOptions carry the engine knobs that are configuration, not run
// parameters: they may differ between restarts of the same run.
type RunnerOptions struct {
	PersonConcurrency       int
	CircuitBreakerThreshold int
	TemplatesDir            string
	DefaultParams           domain.RunParams
}

// RunService orchestrates whole runs: creation from a household template,
// the simulate pass (ticks in order per person, persons in parallel), and
// the later observer pass. Ticks within a person are strictly sequential;
// the four cells of a tick fan out inside MatrixService.
type RunService struct {
	runStore         domain.RunStore
	personStore      domain.PersonStore
	interactionStore domain.InteractionStore
	memories         *MemoryService
	narratives       *NarrativeService
	matrix           *MatrixService
	observer         *ObservationService
	opts             RunnerOptions
	logger           *zap.Logger
}

func NewRunService(rs domain.RunStore, ps domain.PersonStore, is domain.InteractionStore, ms *MemoryService, ns *NarrativeService, mx *MatrixService, os *ObservationService, opts RunnerOptions, logger *zap.Logger) *RunService {
	return &RunService{
		runStore:         rs,
		personStore:      ps,
		interactionStore: is,
		memories:         ms,
		narratives:       ns,
		matrix:           mx,
		observer:         os,
		opts:             opts,
		logger:           logger,
	}
}

type CreateRunInput struct {
	Name      string            `json:"name"`
	Template  string            `json:"template"`
	Household *domain.Household `json:"household"`
	StartDate string            `json:"start_date"`
	Params    *domain.RunParams `json:"params"`
}

// Create freezes a household and parameter set into a new run and
// materializes its person roster. The run starts at the earliest schedule
// slot of the resolved day.
func (s *RunService) Create(ctx context.Context, in CreateRunInput) (*domain.Run, error) {
	h := in.Household
	if h == nil {
		if in.Template == "" {
			return nil, ErrHouseholdMissing
		}
		loaded, err := household.LoadByName(s.opts.TemplatesDir, in.Template)
		if err != nil {
			if errors.Is(err, household.ErrTemplateNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidRunInput, err)
		}
		h = loaded
	} else if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRunInput, err)
	}

	params := s.opts.DefaultParams
	if in.Params != nil {
		params = mergeParams(params, *in.Params)
	}
	if params.TickMinutes <= 0 || 60%params.TickMinutes != 0 {
		return nil, ErrBadTickMinutes
	}

	base := time.Now().UTC().Truncate(24 * time.Hour)
	if in.StartDate != "" {
		d, err := time.Parse("2006-01-02", in.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidRunInput)
		}
		base = d
	}

	schedules := make([][]domain.ScheduleEntry, len(h.Persons))
	var startTime time.Time
	for i, pt := range h.Persons {
		entries := make([]domain.ScheduleEntry, 0, len(pt.Schedule))
		for _, slot := range pt.Schedule {
			start, err := slot.Resolve(base)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRunInput, err)
			}
			entries = append(entries, domain.ScheduleEntry{Start: start, Activity: slot.Activity})
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].Start.Before(entries[b].Start) })
		schedules[i] = entries
		if startTime.IsZero() || entries[0].Start.Before(startTime) {
			startTime = entries[0].Start
		}
	}

	name := in.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", h.Name, base.Format("2006-01-02"))
	}

	run := &domain.Run{
		Name:      name,
		Template:  in.Template,
		Status:    domain.RunStatusCreated,
		StartTime: startTime,
		Params:    params,
		Household: *h,
	}
	if err := s.runStore.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	for i, pt := range h.Persons {
		p := &domain.Person{
			RunID:    run.ID,
			Name:     pt.Name,
			Traits:   pt.Traits,
			Schedule: schedules[i],
		}
		if err := s.personStore.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("create person %s: %w", pt.Name, err)
		}
	}

	s.logger.Info("run created",
		zap.String("run_id", run.ID.String()),
		zap.String("name", run.Name),
		zap.Int("persons", len(h.Persons)))

	return run, nil
}

func mergeParams(def, in domain.RunParams) domain.RunParams {
	if in.TickMinutes > 0 {
		def.TickMinutes = in.TickMinutes
	}
	if in.DecayPerTick > 0 {
		def.DecayPerTick = in.DecayPerTick
	}
	if in.DecayFloor > 0 {
		def.DecayFloor = in.DecayFloor
	}
	if in.GapThreshold > 0 {
		def.GapThreshold = in.GapThreshold
	}
	if len(in.BlockKeywords) > 0 {
		def.BlockKeywords = in.BlockKeywords
	}
	if in.RecallLimit > 0 {
		def.RecallLimit = in.RecallLimit
	}
	return def
}

func (s *RunService) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, err := s.runStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

func (s *RunService) List(ctx context.Context, limit int) ([]domain.Run, error) {
	return s.runStore.List(ctx, limit)
}

// Records lists a run's interaction records, optionally narrowed by filter.
func (s *RunService) Records(ctx context.Context, runID uuid.UUID, f domain.RecordFilter) ([]domain.InteractionRecord, error) {
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}
	return s.interactionStore.ListByRun(ctx, runID, f)
}

func (s *RunService) Record(ctx context.Context, id uuid.UUID) (*domain.InteractionRecord, error) {
	rec, err := s.interactionStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *RunService) Persons(ctx context.Context, runID uuid.UUID) ([]domain.Person, error) {
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}
	return s.personStore.ListByRun(ctx, runID)
}

func (s *RunService) Person(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	p, err := s.personStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return p, nil
}

// PersonMemories returns a person's memory stream weighted as of asOfTick.
// A negative tick means the end of the person's schedule, which makes the
// most-decayed view the default.
func (s *RunService) PersonMemories(ctx context.Context, personID uuid.UUID, asOfTick int) ([]domain.WeightedMemory, error) {
	person, err := s.Person(ctx, personID)
	if err != nil {
		return nil, err
	}
	run, err := s.Get(ctx, person.RunID)
	if err != nil {
		return nil, err
	}
	if asOfTick < 0 {
		asOfTick = personEndTick(run, person)
	}
	return s.memories.Recall(ctx, personID, asOfTick, run.Params, 0)
}

// Start launches (or resumes) the simulate pass in the background. A run can
// start from created, resume after a crash while running, or retry after
// failed; checkpointed progress is honored in all three cases.
func (s *RunService) Start(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch run.Status {
	case domain.RunStatusCreated, domain.RunStatusRunning, domain.RunStatusFailed:
	default:
		return nil, ErrRunNotStartable
	}

	if err := s.runStore.UpdateStatus(ctx, id, domain.RunStatusRunning, ""); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatusRunning

	// The simulation outlives the HTTP request that triggered it.
	go s.simulate(context.Background(), run)

	return run, nil
}

func (s *RunService) simulate(ctx context.Context, run *domain.Run) {
	start := time.Now()
	err := s.simulatePersons(ctx, run)
	if err != nil {
		s.logger.Error("simulation failed",
			zap.String("run_id", run.ID.String()),
			zap.Error(err))
		if uerr := s.runStore.UpdateStatus(ctx, run.ID, domain.RunStatusFailed, err.Error()); uerr != nil {
			s.logger.Error("update run status failed", zap.Error(uerr))
		}
		return
	}

	s.logger.Info("simulation finished",
		zap.String("run_id", run.ID.String()),
		zap.Duration("elapsed", time.Since(start)))
	if uerr := s.runStore.UpdateStatus(ctx, run.ID, domain.RunStatusSimulated, ""); uerr != nil {
		s.logger.Error("update run status failed", zap.Error(uerr))
	}
}

func (s *RunService) simulatePersons(ctx context.Context, run *domain.Run) error {
	persons, err := s.personStore.ListByRun(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(persons) == 0 {
		return errors.New("run has no persons")
	}

	progress, err := s.runStore.GetProgress(ctx, run.ID)
	if err != nil {
		return err
	}
	resumeFrom := make(map[uuid.UUID]int, len(progress))
	for _, p := range progress {
		resumeFrom[p.PersonID] = p.LastCompletedTick + 1
	}

	br := newBreaker(s.opts.CircuitBreakerThreshold)

	limit := s.opts.PersonConcurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range persons {
		person := &persons[i]
		g.Go(func() error {
			return s.simulatePerson(gctx, run, person, resumeFrom[person.ID], br)
		})
	}
	return g.Wait()
}

func (s *RunService) simulatePerson(ctx context.Context, run *domain.Run, person *domain.Person, startTick int, br *breaker) error {
	if len(person.Schedule) == 0 {
		return nil
	}

	// The four counterfactual lineages fork from the canonical environment
	// exactly once per person and never re-synchronize.
	envs := NewCellEnvs(&run.Household.Environment)
	if startTick > 0 {
		if err := s.restoreLineages(ctx, run, person, startTick, envs); err != nil {
			return fmt.Errorf("restore lineages for %s: %w", person.Name, err)
		}
	}

	endTick := personEndTick(run, person)
	qph := 60 / run.Params.TickMinutes

	var quarters []domain.QuarterDescriptor
	quartersBase := -1

	for tick := startTick; tick <= endTick; tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		ts := run.TickTime(tick)
		entry, ok := person.ScheduleEntryAt(ts)
		if !ok {
			continue
		}

		baseTick := run.TickIndex(entry.Start)
		offset := tick - baseTick
		if offset < 0 || offset >= qph {
			continue
		}

		if baseTick != quartersBase {
			recalled, err := s.memories.Recall(ctx, person.ID, baseTick, run.Params, run.Params.RecallLimit)
			if err != nil {
				return err
			}
			qs, err := s.narratives.QuartersForHour(ctx, run, person, entry, baseTick, recalled, &run.Household.Environment)
			if err != nil {
				if br.observe(true) {
					return ErrCircuitOpen
				}
				s.logger.Warn("hour narrative failed, skipping hour",
					zap.String("person", person.Name),
					zap.Int("base_tick", baseTick),
					zap.Error(err))
				tick = baseTick + qph - 1
				if cerr := s.checkpoint(ctx, run, person, tick); cerr != nil {
					return cerr
				}
				continue
			}
			quarters = qs
			quartersBase = baseTick
		}

		q := quarters[offset]

		if !q.CommandEligible {
			s.logger.Info("tick skipped by feasibility gate",
				zap.String("person", person.Name),
				zap.Int("tick", tick),
				zap.String("activity", q.QuarterActivity))
			if _, err := s.memories.Record(ctx, person.ID, tick, ts, domain.MemoryKindActivity, q.QuarterActivity); err != nil {
				return err
			}
			if err := s.checkpoint(ctx, run, person, tick); err != nil {
				return err
			}
			continue
		}

		recalled, err := s.memories.Recall(ctx, person.ID, tick, run.Params, run.Params.RecallLimit)
		if err != nil {
			return err
		}

		records, err := s.matrix.ExecuteTick(ctx, run, person, q, envs, recalled)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if br.observe(rec.State == domain.CellStateFailed) {
				return ErrCircuitOpen
			}
		}

		if err := s.writeBack(ctx, person, tick, ts, q, records); err != nil {
			return err
		}
		if err := s.checkpoint(ctx, run, person, tick); err != nil {
			return err
		}
	}

	s.logger.Info("person simulated",
		zap.String("run_id", run.ID.String()),
		zap.String("person", person.Name),
		zap.Int("ticks", endTick-startTick+1))

	return nil
}

// restoreLineages rebuilds the four environment forks after a resume: partial
// work at or past the resume point is cleared, then the surviving records'
// mutations are replayed onto fresh copies in tick order.
func (s *RunService) restoreLineages(ctx context.Context, run *domain.Run, person *domain.Person, fromTick int, envs CellEnvs) error {
	if err := s.interactionStore.DeleteFromTick(ctx, run.ID, person.ID, fromTick); err != nil {
		return err
	}

	records, err := s.interactionStore.ListByRun(ctx, run.ID, domain.RecordFilter{PersonID: &person.ID})
	if err != nil {
		return err
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Tick < records[j].Tick })

	for _, rec := range records {
		env, ok := envs[rec.Cell]
		if !ok {
			continue
		}
		for _, c := range rec.StateChanges {
			if _, err := env.Apply(c.Room, c.Device, c.Property, c.After); err != nil {
				return fmt.Errorf("replay change at tick %d: %w", rec.Tick, err)
			}
		}
	}
	return nil
}

func (s *RunService) writeBack(ctx context.Context, person *domain.Person, tick int, ts time.Time, q domain.QuarterDescriptor, records []domain.InteractionRecord) error {
	if _, err := s.memories.Record(ctx, person.ID, tick, ts, domain.MemoryKindActivity, q.QuarterActivity); err != nil {
		return err
	}

	if call, ok := livedInteraction(records); ok {
		content := fmt.Sprintf("어시스턴트에게 \"%s\"라고 말했고 \"%s\"라는 응답을 받았다.", call.Command, call.Reply)
		if _, err := s.memories.Record(ctx, person.ID, tick, ts, domain.MemoryKindAssistantCall, content); err != nil {
			return err
		}
	}
	return nil
}

// livedInteraction picks the cell whose exchange enters the person's single
// memory stream: the context-present generative cell, or the context-present
// rule cell when the first failed. Memory is one timeline even though four
// branches ran.
func livedInteraction(records []domain.InteractionRecord) (domain.InteractionRecord, bool) {
	for _, prefer := range []domain.Cell{domain.CellWCGenerative, domain.CellWCRule} {
		for _, rec := range records {
			if rec.Cell == prefer && rec.State != domain.CellStateFailed && rec.Command != "" {
				return rec, true
			}
		}
	}
	return domain.InteractionRecord{}, false
}

func (s *RunService) checkpoint(ctx context.Context, run *domain.Run, person *domain.Person, tick int) error {
	return s.runStore.UpsertProgress(ctx, &domain.RunProgress{
		RunID:             run.ID,
		PersonID:          person.ID,
		LastCompletedTick: tick,
	})
}

// personEndTick is the last tick covered by the person's schedule: the final
// hour entry runs through its full hour.
func personEndTick(run *domain.Run, person *domain.Person) int {
	qph := 60 / run.Params.TickMinutes
	last := person.Schedule[0].Start
	for _, e := range person.Schedule {
		if e.Start.After(last) {
			last = e.Start
		}
	}
	return run.TickIndex(last) + qph - 1
}

// Observe launches the observer pass in the background. Allowed once the
// simulate pass finished; re-running it picks up records a previous pass
// left pending.
func (s *RunService) Observe(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch run.Status {
	case domain.RunStatusSimulated, domain.RunStatusObserving:
	default:
		return nil, ErrRunNotObservable
	}

	if err := s.runStore.UpdateStatus(ctx, id, domain.RunStatusObserving, ""); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatusObserving

	go s.observe(context.Background(), run)

	return run, nil
}

func (s *RunService) observe(ctx context.Context, run *domain.Run) {
	_, failed, err := s.observer.ObserveRun(ctx, run.ID)
	if err != nil && !errors.Is(err, ErrNothingToObserve) {
		s.logger.Error("observer pass failed",
			zap.String("run_id", run.ID.String()),
			zap.Error(err))
		if uerr := s.runStore.UpdateStatus(ctx, run.ID, domain.RunStatusFailed, err.Error()); uerr != nil {
			s.logger.Error("update run status failed", zap.Error(uerr))
		}
		return
	}
	if failed > 0 {
		// Leave the run observing so the pass can be re-triggered.
		s.logger.Warn("observer pass incomplete",
			zap.String("run_id", run.ID.String()),
			zap.Int("pending", failed))
		return
	}

	if _, err := s.interactionStore.MarkDone(ctx, run.ID); err != nil {
		s.logger.Error("finalize records failed", zap.Error(err))
		return
	}
	if err := s.runStore.UpdateStatus(ctx, run.ID, domain.RunStatusDone, ""); err != nil {
		s.logger.Error("update run status failed", zap.Error(err))
		return
	}
	s.logger.Info("run complete", zap.String("run_id", run.ID.String()))
}

// RunStatusReport is the poll view of a run: lifecycle status, per-person
// checkpoints, and record counts per cell state.
type RunStatusReport struct {
	Run      *domain.Run          `json:"run"`
	Persons  []domain.Person      `json:"persons"`
	Progress []domain.RunProgress `json:"progress"`
	Records  map[string]int       `json:"records_by_state"`
}

func (s *RunService) Status(ctx context.Context, id uuid.UUID) (*RunStatusReport, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	persons, err := s.personStore.ListByRun(ctx, id)
	if err != nil {
		return nil, err
	}
	progress, err := s.runStore.GetProgress(ctx, id)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, state := range []domain.CellState{
		domain.CellStateSelfEvaluated,
		domain.CellStateObserverEvaluated,
		domain.CellStateDone,
		domain.CellStateFailed,
	} {
		n, err := s.interactionStore.CountByRunAndState(ctx, id, state)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[string(state)] = n
		}
	}

	return &RunStatusReport{
		Run:      run,
		Persons:  persons,
		Progress: progress,
		Records:  counts,
	}, nil
}
