package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/khrees2412/callscreen/internal/ai"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/matcher"
	"github.com/khrees2412/callscreen/internal/meeting"
	"github.com/khrees2412/callscreen/internal/scheduling"
	"github.com/khrees2412/callscreen/pkg/models"
)

const (
	// SlotLead is how far ahead the earliest offered slot must start
	SlotLead = 2 * time.Hour

	// SlotHorizon bounds how far ahead slots are offered
	SlotHorizon = 7 * 24 * time.Hour

	// SlotOffers is the number of slots offered at once
	SlotOffers = 3

	// ctcTolerance allows expectations up to 20% above the job maximum
	ctcTolerance = 1.2

	defaultRating = 3
)

// Entity keys kept on the session across turns
const (
	keySkillRatings   = "skillRatings"
	keyAvailableSlots = "availableSlots"
	keyOfferedSlots   = "offeredSlots"
	keyMatch          = "matchPercentage"
	keyConfirmed      = "appointmentConfirmed"
	keyAppointmentID  = "appointmentId"
)

// Extractor pulls structured entities out of an utterance
type Extractor interface {
	Extract(ctx context.Context, prompt, text string) ai.Entities
}

// Reply is the outcome of one conversation turn
type Reply struct {
	Message  string         `json:"message"`
	NextStep int            `json:"next_step"`
	Entities map[string]any `json:"entities"`
	EndCall  bool           `json:"end_call"`
}

// turn is what a step handler decides
type turn struct {
	message  string
	next     Step
	entities map[string]any
	endCall  bool
}

// Machine drives screening conversations from greeting to a booked
// interview or a rejection. Session state lives in the store, so any
// process can continue a conversation.
type Machine struct {
	store     *database.Store
	ledger    *scheduling.Ledger
	registry  *scheduling.Registry
	extractor Extractor
	linker    meeting.Linker
	logger    *slog.Logger

	// Now is the machine clock
	Now func() time.Time
}

// NewMachine creates a dialogue state machine
func NewMachine(store *database.Store, ledger *scheduling.Ledger, registry *scheduling.Registry,
	extractor Extractor, linker meeting.Linker, logger *slog.Logger) *Machine {
	return &Machine{
		store:     store,
		ledger:    ledger,
		registry:  registry,
		extractor: extractor,
		linker:    linker,
		logger:    logger,
		Now:       time.Now,
	}
}

// StartSession creates a conversation for a candidate at the greeting step
func (m *Machine) StartSession(ctx context.Context, candidateID, recruiterID int64, queueEntryID *int64) (*models.Session, error) {
	session := &models.Session{
		ID:           uuid.NewString(),
		CandidateID:  candidateID,
		RecruiterID:  recruiterID,
		QueueEntryID: queueEntryID,
		Entities:     map[string]any{},
		CreatedAt:    m.Now(),
	}
	Step{Kind: Greeting}.apply(session)

	if err := m.store.InsertSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Session returns a conversation by ID
func (m *Machine) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	return m.store.GetSession(ctx, sessionID)
}

// Process runs one turn: the utterance is handled by the current step,
// the session advances and the turn is appended to the conversation log.
func (m *Machine) Process(ctx context.Context, sessionID, utterance string) (*Reply, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	candidate, err := m.store.GetCandidate(ctx, session.CandidateID)
	if err != nil {
		return nil, err
	}

	if len(session.History) == 0 {
		session.History = append(session.History, models.Message{Role: "system", Content: systemPrompt})
	}
	session.History = append(session.History, models.Message{Role: "user", Content: utterance})

	current := stepOf(session)
	t, err := m.handle(ctx, current, session, candidate, utterance)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", current.Kind, err)
	}
	if t.entities == nil {
		t.entities = map[string]any{}
	}

	session.History = append(session.History, models.Message{Role: "assistant", Content: t.message})
	ai.Entities(session.Entities).Merge(t.entities)
	t.next.apply(session)

	err = m.store.WithTx(ctx, func(q *database.Queries) error {
		if err := q.SaveSession(ctx, session); err != nil {
			return err
		}
		return q.InsertConversationLog(ctx, &models.ConversationLog{
			CandidateID: session.CandidateID,
			SessionID:   session.ID,
			Transcript:  utterance,
			Entities:    t.entities,
			CreatedAt:   m.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("dialogue turn",
		"session_id", session.ID,
		"candidate_id", session.CandidateID,
		"from", current.Kind,
		"to", t.next.Kind,
		"step", session.Step,
		"end_call", t.endCall,
	)

	return &Reply{
		Message:  t.message,
		NextStep: session.Step,
		Entities: t.entities,
		EndCall:  t.endCall,
	}, nil
}

// Repeat returns the last thing said without advancing the conversation,
// or nil when nothing has been said yet
func (m *Machine) Repeat(ctx context.Context, sessionID string) (*Reply, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := len(session.History) - 1; i >= 0; i-- {
		if session.History[i].Role == "assistant" {
			return &Reply{
				Message:  session.History[i].Content,
				NextStep: session.Step,
				Entities: map[string]any{},
				EndCall:  Kind(session.Stage) == Terminal,
			}, nil
		}
	}
	return nil, nil
}

func (m *Machine) handle(ctx context.Context, step Step, session *models.Session, candidate *models.Candidate, utterance string) (*turn, error) {
	switch step.Kind {
	case Greeting:
		return m.greet(candidate), nil
	case CollectProfile:
		return m.collectProfile(ctx, session, candidate, utterance)
	case PresentJob:
		return m.presentJob(ctx, session), nil
	case CollectPreferences:
		return m.collectPreferences(ctx, session, utterance)
	case CollectComp:
		return m.collectCompensation(ctx, session, utterance)
	case RateSkill:
		if step.SkillIndex < len(session.JobSkills) {
			return m.rateSkill(ctx, step.SkillIndex, session, utterance)
		}
		return m.evaluate(ctx, session, candidate)
	case Evaluate:
		return m.evaluate(ctx, session, candidate)
	case ConfirmSlot:
		return m.confirmSlot(ctx, session, utterance)
	default:
		return &turn{message: msgGoodbye, next: step, endCall: true}, nil
	}
}

func (m *Machine) greet(candidate *models.Candidate) *turn {
	greeting := greetings[int(candidate.ID)%len(greetings)]
	return &turn{
		message: fmt.Sprintf(greeting, candidate.Name) + msgIntro,
		next:    Step{Kind: CollectProfile},
	}
}

func (m *Machine) collectProfile(ctx context.Context, session *models.Session, candidate *models.Candidate, utterance string) (*turn, error) {
	e := m.extract(ctx, profilePrompt, utterance)

	update := database.CandidateUpdate{}
	about := e.String("about")
	if about != "" {
		update.About = &about
	}
	experience, hasExperience := e.Float("years_of_experience")
	if hasExperience {
		update.Experience = &experience
	} else {
		experience = candidate.Experience
	}
	if update.About != nil || update.Experience != nil {
		if err := m.store.UpdateCandidate(ctx, session.CandidateID, update); err != nil {
			return nil, err
		}
	}

	skills := e.Strings("key_skills")
	var jobs []*models.Job
	if len(skills) > 0 && about != "" {
		terms := append(append([]string{}, skills...), strings.Fields(about)...)
		found, err := m.store.SearchJobs(ctx, database.JobSearch{Terms: terms, MaxExperience: experience, Limit: 1})
		if err != nil {
			return nil, err
		}
		jobs = found
	}

	if len(jobs) == 0 {
		return &turn{message: msgNoJobFound, next: Step{Kind: CollectPreferences}, entities: e}, nil
	}

	// The skill list is fixed for the rest of the conversation
	job := jobs[0]
	session.JobID = &job.ID
	session.JobSkills = append([]models.Skill{}, job.Skills...)

	return &turn{message: msgJobFound, next: Step{Kind: PresentJob}, entities: e}, nil
}

func (m *Machine) presentJob(ctx context.Context, session *models.Session) *turn {
	next := Step{Kind: CollectPreferences}
	if session.JobID == nil {
		return &turn{message: msgJobUnavailable, next: next}
	}
	job, err := m.store.GetJob(ctx, *session.JobID)
	if err != nil {
		m.logger.Warn("failed to load job for presentation", "job_id", *session.JobID, "error", err)
		return &turn{message: msgJobUnavailable, next: next}
	}
	return &turn{message: describeJob(job), next: next}
}

func (m *Machine) collectPreferences(ctx context.Context, session *models.Session, utterance string) (*turn, error) {
	e := m.extract(ctx, preferencePrompt, utterance)

	if interested, ok := e.Bool("interested_in_role"); ok && !interested {
		if err := m.setStatus(ctx, session.CandidateID, models.CandidateRejected, nil); err != nil {
			return nil, err
		}
		return &turn{message: msgNotInterested, next: terminal(ReasonNotInterested), entities: e, endCall: true}, nil
	}

	preference := models.PreferFlexible
	if v, _ := e.Bool("remote_preferred"); v {
		preference = models.PreferRemote
	} else if v, _ := e.Bool("hybrid_preferred"); v {
		preference = models.PreferHybrid
	} else if v, _ := e.Bool("onsite_preferred"); v {
		preference = models.PreferOnsite
	}

	if session.JobID != nil && preference != models.PreferFlexible {
		job, err := m.store.GetJob(ctx, *session.JobID)
		if err != nil {
			return nil, err
		}
		if job.JobType != "" && string(job.JobType) != string(preference) {
			if err := m.setStatus(ctx, session.CandidateID, models.CandidateRejected, nil); err != nil {
				return nil, err
			}
			message := fmt.Sprintf("Thanks for that! This role is %s, which doesn't quite match your preference. "+
				"I'll keep an eye out for something that does. Have a great day!", job.JobType)
			return &turn{message: message, next: terminal(ReasonLocation), entities: e, endCall: true}, nil
		}
	}

	if err := m.store.UpdateCandidate(ctx, session.CandidateID, database.CandidateUpdate{LocationPreference: &preference}); err != nil {
		return nil, err
	}
	return &turn{message: msgAskCompensation, next: Step{Kind: CollectComp}, entities: e}, nil
}

func (m *Machine) collectCompensation(ctx context.Context, session *models.Session, utterance string) (*turn, error) {
	e := m.extract(ctx, compensationPrompt, utterance)

	// Fall back to plain pattern matching when the model misses amounts
	current, hasCurrent := e.Float("current_ctc")
	expected, hasExpected := e.Float("expected_ctc")
	if !hasCurrent && !hasExpected {
		if amounts := ai.ExtractCTCs(utterance); len(amounts) >= 2 {
			current, hasCurrent = amounts[0], true
			expected, hasExpected = amounts[1], true
			e["current_ctc"], e["expected_ctc"] = current, expected
		}
	}
	notice := e.String("notice_period")
	if notice == "" {
		if notice = ai.ExtractNotice(utterance); notice != "" {
			e["notice_period"] = notice
		}
	}

	update := database.CandidateUpdate{}
	if hasCurrent {
		update.CurrentCTC = &current
	}
	if hasExpected {
		update.ExpectedCTC = &expected
	}
	if notice != "" {
		update.NoticePeriod = &notice
	}
	if update != (database.CandidateUpdate{}) {
		if err := m.store.UpdateCandidate(ctx, session.CandidateID, update); err != nil {
			return nil, err
		}
	}

	if session.JobID == nil {
		return &turn{message: msgCompOnFile, next: Step{Kind: Evaluate}, entities: e}, nil
	}

	job, err := m.store.GetJob(ctx, *session.JobID)
	if err != nil {
		return nil, err
	}
	if job.CTCMax != nil && hasExpected && expected > *job.CTCMax*ctcTolerance {
		if err := m.setStatus(ctx, session.CandidateID, models.CandidateRejected, nil); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("Appreciate you sharing that. Your expected salary of %s lakhs is a bit above this role's range of %s lakhs. "+
			"I'll keep you in mind for something that fits better. Take care!", formatNumber(expected), ctcRange(job))
		return &turn{message: message, next: terminal(ReasonCompensation), entities: e, endCall: true}, nil
	}

	if len(session.JobSkills) == 0 {
		return &turn{message: msgSkillsDone, next: Step{Kind: Evaluate}, entities: e}, nil
	}
	message := fmt.Sprintf("Great, thanks for that! Let's talk skills. How would you rate yourself in %s "+
		"on a scale of 1 to 5, with 5 being expert level?", session.JobSkills[0].Name)
	return &turn{message: message, next: rateSkill(0), entities: e}, nil
}

func (m *Machine) rateSkill(ctx context.Context, i int, session *models.Session, utterance string) (*turn, error) {
	e := m.extract(ctx, ratingPrompt, utterance)
	rating := ratingFrom(e)
	skill := session.JobSkills[i]

	if err := m.store.UpsertRating(ctx, session.CandidateID, skill.ID, rating); err != nil {
		return nil, err
	}

	ratings := map[string]any{}
	for id, r := range skillRatings(session.Entities) {
		ratings[strconv.FormatInt(id, 10)] = r
	}
	ratings[strconv.FormatInt(skill.ID, 10)] = rating
	entities := map[string]any{keySkillRatings: ratings}

	next := i + 1
	if next < len(session.JobSkills) {
		message := fmt.Sprintf("Cool, thanks! How about %s? Where would you place yourself on that 1-to-5 scale?",
			session.JobSkills[next].Name)
		return &turn{message: message, next: rateSkill(next), entities: entities}, nil
	}
	return &turn{message: msgSkillsDone, next: Step{Kind: Evaluate}, entities: entities}, nil
}

func (m *Machine) evaluate(ctx context.Context, session *models.Session, candidate *models.Candidate) (*turn, error) {
	if session.JobID == nil {
		if err := m.setStatus(ctx, candidate.ID, models.CandidateRejected, nil); err != nil {
			return nil, err
		}
		return &turn{message: msgNoRoles, next: terminal(ReasonNoMatch), endCall: true}, nil
	}

	jobID := *session.JobID
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := m.store.UpdateCandidate(ctx, candidate.ID, database.CandidateUpdate{JobID: &jobID}); err != nil {
		return nil, err
	}

	match := matcher.SkillMatchPercentage(session.JobSkills, skillRatings(session.Entities))
	entities := map[string]any{keyMatch: match}
	experienced := matcher.ExperienceSufficient(candidate.Experience, job.MinExperience)

	if match < matcher.QualifyingScore || !experienced {
		if err := m.setStatus(ctx, candidate.ID, models.CandidateRejected, &match); err != nil {
			return nil, err
		}
		message := "Thanks so much for chatting with me! After looking things over, "
		if !experienced {
			message += fmt.Sprintf("this role needs at least %s years of experience, so it might not be the best fit right now.",
				formatNumber(job.MinExperience))
		} else {
			message += "we're looking for a bit more depth in some of the skills for this one."
		}
		message += " I'll keep your profile handy for future openings. Have a great day!"
		return &turn{message: message, next: terminal(ReasonNotQualified), entities: entities, endCall: true}, nil
	}

	if err := m.setStatus(ctx, candidate.ID, models.CandidateShortlisted, &match); err != nil {
		return nil, err
	}

	slots, err := m.offerableSlots(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return &turn{message: msgNoSlots, next: terminal(ReasonNoSlots), entities: entities, endCall: true}, nil
	}

	ids := slotIDs(slots)
	entities[keyAvailableSlots] = ids
	entities[keyOfferedSlots] = ids
	message := fmt.Sprintf("Exciting stuff, you're a %d%% match for this role! I'd love to get an interview set up. "+
		"Here are some options: %s. Which one works for you?", int(math.Round(match)), formatOptions(slots))
	return &turn{message: message, next: Step{Kind: ConfirmSlot}, entities: entities}, nil
}

func (m *Machine) confirmSlot(ctx context.Context, session *models.Session, utterance string) (*turn, error) {
	e := m.extract(ctx, slotChoicePrompt, utterance)
	bag := ai.Entities(session.Entities)
	offered := bag.Int64s(keyAvailableSlots)
	stay := Step{Kind: ConfirmSlot}

	if notAvailable, _ := e.Bool("not_available"); notAvailable {
		exclude := bag.Int64s(keyOfferedSlots)
		if len(exclude) == 0 {
			exclude = offered
		}
		alternatives, err := m.offerableSlots(ctx, exclude)
		if err != nil {
			return nil, err
		}
		if len(alternatives) == 0 {
			return &turn{message: msgSlotsExhausted, next: terminal(ReasonSlotsExhausted), endCall: true}, nil
		}
		ids := slotIDs(alternatives)
		entities := map[string]any{
			keyAvailableSlots: ids,
			keyOfferedSlots:   append(append([]int64{}, exclude...), ids...),
		}
		message := fmt.Sprintf("Thanks for letting me know! How about these instead: %s. Any of those work for you?",
			formatOptions(alternatives))
		return &turn{message: message, next: stay, entities: entities}, nil
	}

	option, hasOption := e.Int("option_number")
	confirmed, _ := e.Bool("confirm")
	if hasOption && (option < 1 || option > len(offered)) {
		hasOption = false
	}
	if !hasOption && !confirmed {
		return &turn{message: msgUnclearChoice, next: stay}, nil
	}
	if len(offered) == 0 || session.JobID == nil {
		return &turn{message: msgSchedulingGlitch, next: terminal(ReasonBookingError), endCall: true}, nil
	}

	slotID := offered[0]
	if hasOption {
		slotID = offered[option-1]
	}
	return m.book(ctx, session, slotID)
}

func (m *Machine) book(ctx context.Context, session *models.Session, slotID int64) (*turn, error) {
	failed := &turn{message: msgBookingFailed, next: terminal(ReasonBookingError), endCall: true}

	slot, err := m.store.GetSlot(ctx, slotID)
	if err != nil {
		m.logger.Warn("offered slot vanished", "session_id", session.ID, "slot_id", slotID, "error", err)
		return failed, nil
	}

	link, err := m.linker.CreateLink(ctx, session.CandidateID, *session.JobID, slot)
	if err != nil {
		m.logger.Warn("meeting link unavailable", "session_id", session.ID, "error", err)
		link = ""
	}

	appt, err := m.registry.Book(ctx, scheduling.BookRequest{
		JobID:       *session.JobID,
		CandidateID: session.CandidateID,
		SlotID:      slotID,
		RecruiterID: session.RecruiterID,
		MeetingLink: link,
	})
	if err != nil {
		m.logger.Warn("booking failed", "session_id", session.ID, "slot_id", slotID, "error", err)
		return failed, nil
	}

	if err := m.setStatus(ctx, session.CandidateID, models.CandidateShortlisted, nil); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("All set! Your interview's booked for %s from %s to %s. Check your email soon for a Google Meet link. "+
		"Good luck, and thanks for chatting with me!", slot.Date.Format("Monday, January 2"), slot.StartTime, slot.EndTime)
	return &turn{
		message:  message,
		next:     terminal(ReasonConfirmed),
		entities: map[string]any{keyConfirmed: true, keyAppointmentID: appt.ID},
		endCall:  true,
	}, nil
}

// extract never returns a nil bag
func (m *Machine) extract(ctx context.Context, prompt, utterance string) ai.Entities {
	e := m.extractor.Extract(ctx, prompt, utterance)
	if e == nil {
		return ai.Entities{}
	}
	return e
}

// offerableSlots returns up to SlotOffers free slots in the offer window
func (m *Machine) offerableSlots(ctx context.Context, exclude []int64) ([]*models.Slot, error) {
	now := m.Now()
	return m.ledger.AvailableInWindow(ctx, now.Add(SlotLead), now.Add(SlotHorizon), exclude, SlotOffers)
}

func (m *Machine) setStatus(ctx context.Context, candidateID int64, status models.CandidateStatus, score *float64) error {
	return m.store.UpdateCandidate(ctx, candidateID, database.CandidateUpdate{Status: &status, Score: score})
}

// ratingFrom reads a 1-5 rating, defaulting when missing or out of range
func ratingFrom(e ai.Entities) int {
	f, ok := e.Float("rating")
	if !ok {
		return defaultRating
	}
	r := int(math.Round(f))
	if r < 1 || r > 5 {
		return defaultRating
	}
	return r
}

// skillRatings reads the per-skill ratings collected so far
func skillRatings(entities map[string]any) map[int64]int {
	out := map[int64]int{}
	raw, ok := entities[keySkillRatings].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		switch r := v.(type) {
		case float64:
			out[id] = int(r)
		case int:
			out[id] = r
		}
	}
	return out
}

func slotIDs(slots []*models.Slot) []int64 {
	ids := make([]int64, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	return ids
}

func formatOptions(slots []*models.Slot) string {
	options := make([]string, 0, len(slots))
	for i, s := range slots {
		options = append(options, fmt.Sprintf("Option %d: %s from %s to %s",
			i+1, s.Date.Format("Monday, January 2"), s.StartTime, s.EndTime))
	}
	return strings.Join(options, ", ")
}

func describeJob(job *models.Job) string {
	parts := []string{fmt.Sprintf("So, we've got an opening for a %s. %s It's looking for someone with at least %s years of experience.",
		job.Title, job.Description, formatNumber(job.MinExperience))}

	where := ""
	if job.Location != "" {
		where = " based in " + job.Location
	}
	if job.JobType != "" {
		parts = append(parts, fmt.Sprintf("It's a %s role%s.", job.JobType, where))
	}
	if job.CTCMax != nil {
		parts = append(parts, fmt.Sprintf("The pay range is %s lakhs per year.", ctcRange(job)))
	}

	setup := string(job.JobType)
	if setup == "" {
		setup = "work"
	}
	if job.Location != "" {
		setup += " in " + job.Location
	}
	parts = append(parts, fmt.Sprintf("What do you think, does this sound like something you'd be interested in, and does the %s setup work for you?", setup))
	return strings.Join(parts, " ")
}

func ctcRange(job *models.Job) string {
	if job.CTCMin == nil {
		return "up to " + formatNumber(*job.CTCMax)
	}
	return formatNumber(*job.CTCMin) + "-" + formatNumber(*job.CTCMax)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
