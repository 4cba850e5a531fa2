package dialogue

import "github.com/khrees2412/callscreen/pkg/models"

// Kind is the stage of a screening conversation
type Kind string

const (
	Greeting           Kind = "greeting"
	CollectProfile     Kind = "collect_profile"
	PresentJob         Kind = "present_job"
	CollectPreferences Kind = "collect_preferences"
	CollectComp        Kind = "collect_comp"
	RateSkill          Kind = "rate_skill"
	Evaluate           Kind = "evaluate"
	ConfirmSlot        Kind = "confirm_slot"
	Terminal           Kind = "terminal"
)

// Reason records why a conversation ended
type Reason string

const (
	ReasonNotInterested  Reason = "not_interested"
	ReasonLocation       Reason = "location_mismatch"
	ReasonCompensation   Reason = "compensation_mismatch"
	ReasonNoMatch        Reason = "no_match"
	ReasonNotQualified   Reason = "not_qualified"
	ReasonNoSlots        Reason = "no_slots"
	ReasonSlotsExhausted Reason = "slots_exhausted"
	ReasonConfirmed      Reason = "confirmed"
	ReasonBookingError   Reason = "booking_error"
)

// Step is a position in the conversation. SkillIndex is only meaningful
// for RateSkill, Reason only for Terminal.
type Step struct {
	Kind       Kind
	SkillIndex int
	Reason     Reason
}

func rateSkill(i int) Step { return Step{Kind: RateSkill, SkillIndex: i} }

func terminal(reason Reason) Step { return Step{Kind: Terminal, Reason: reason} }

// Index returns the numeric step for a job with skillCount required
// skills: 0-4 for the fixed stages, 5+i while rating skill i, then
// 5+N for Evaluate, 5+N+1 for ConfirmSlot and 5+N+2 once terminal.
func (s Step) Index(skillCount int) int {
	switch s.Kind {
	case Greeting:
		return 0
	case CollectProfile:
		return 1
	case PresentJob:
		return 2
	case CollectPreferences:
		return 3
	case CollectComp:
		return 4
	case RateSkill:
		return 5 + s.SkillIndex
	case Evaluate:
		return 5 + skillCount
	case ConfirmSlot:
		return 5 + skillCount + 1
	default:
		return 5 + skillCount + 2
	}
}

// stepOf reads the step state persisted on a session
func stepOf(s *models.Session) Step {
	kind := Kind(s.Stage)
	if kind == "" {
		kind = Greeting
	}
	return Step{Kind: kind, SkillIndex: s.SkillIndex, Reason: Reason(s.TerminalReason)}
}

// apply persists the step state on a session
func (s Step) apply(session *models.Session) {
	session.Stage = string(s.Kind)
	session.SkillIndex = s.SkillIndex
	session.TerminalReason = string(s.Reason)
	session.Step = s.Index(len(session.JobSkills))
}
