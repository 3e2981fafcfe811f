package gate

// Reason explains a gate decision. It is used as a metric label.
type Reason string

const (
	ReasonAccepted    Reason = "accepted"
	ReasonNotError    Reason = "not_error"
	ReasonEditor      Reason = "editor_disabled"
	ReasonPredicate   Reason = "predicate_rejected"
	ReasonRateLimited Reason = "rate_limited"
)

type Decision struct {
	Submit bool
	Reason Reason
}

// Settings is the part of the reporting configuration the gate reads.
type Settings struct {
	PostExceptionsInEditor bool
	// ShouldPostException replaces the default rate limiting policy when set.
	ShouldPostException func(*Event) bool
}

// Observer is notified of every decision.
type Observer func(*Event, Decision)

type Gate struct {
	settings Settings
	limiter  Limiter
	observer Observer
}

func New(settings Settings, limiter Limiter) *Gate {
	return &Gate{
		settings: settings,
		limiter:  limiter,
	}
}

func (g *Gate) SetObserver(observer Observer) {
	g.observer = observer
}

func (g *Gate) ShouldSubmit(event *Event) bool {
	return g.Decide(event).Submit
}

// Decide never fails. A nil event is handled as a non-specific error event.
func (g *Gate) Decide(event *Event) Decision {
	decision := g.decide(event)
	if g.observer != nil {
		g.observer(event, decision)
	}
	return decision
}

func (g *Gate) decide(event *Event) Decision {
	if !event.isErrorSignal() {
		return Decision{Reason: ReasonNotError}
	}

	if event != nil && event.Editor && !g.settings.PostExceptionsInEditor {
		return Decision{Reason: ReasonEditor}
	}

	if g.settings.ShouldPostException != nil {
		if g.settings.ShouldPostException(event) {
			return Decision{Submit: true, Reason: ReasonAccepted}
		}
		return Decision{Reason: ReasonPredicate}
	}

	if g.limiter.Allow() {
		return Decision{Submit: true, Reason: ReasonAccepted}
	}
	return Decision{Reason: ReasonRateLimited}
}

// IgnoreTypes builds a predicate that drops the listed exception types and hands
// everything else to next.
func IgnoreTypes(types []string, next Limiter) func(*Event) bool {
	ignored := make(map[string]struct{}, len(types))
	for _, t := range types {
		ignored[t] = struct{}{}
	}
	return func(event *Event) bool {
		if event != nil {
			if _, ok := ignored[event.Type]; ok {
				return false
			}
		}
		return next.Allow()
	}
}
