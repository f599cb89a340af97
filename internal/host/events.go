package host

// ChangeType identifies what kind of software change triggered lifecycle
// processing.
type ChangeType string

const (
	ChangePlugin           ChangeType = "plugin"
	ChangeTheme            ChangeType = "theme"
	ChangeAutoUpdate       ChangeType = "auto_update"
	ChangePluginActivation ChangeType = "plugin_activation"
	ChangeRollbackVerify   ChangeType = "rollback_verify"
	ChangeManual           ChangeType = "manual"
)

// ChangeContext identifies a software change: what kind, what action, and
// which component identifiers are affected.
type ChangeContext struct {
	Type    ChangeType `json:"type"`
	Action  string     `json:"action"` // update | activate | rollback | verify
	Items   []string   `json:"items,omitempty"`
	Session string     `json:"session,omitempty"`
}

// Events is an explicit subscription surface for the small, enumerated set of
// lifecycle events the platform emits. Subscribers are invoked synchronously
// in registration order; the platform's own flow must never be blocked by a
// slow or failing subscriber, so subscribers are expected not to panic.
type Events struct {
	beforeChange       []func(ChangeContext)
	afterChange        []func(ChangeContext)
	componentActivated []func(ChangeContext)
}

// NewEvents creates an empty event bus.
func NewEvents() *Events {
	return &Events{}
}

// OnBeforeChange registers a callback fired before a software change starts.
func (e *Events) OnBeforeChange(fn func(ChangeContext)) {
	e.beforeChange = append(e.beforeChange, fn)
}

// OnAfterChange registers a callback fired after a software change completes.
func (e *Events) OnAfterChange(fn func(ChangeContext)) {
	e.afterChange = append(e.afterChange, fn)
}

// OnComponentActivated registers a callback fired when a component is newly
// activated.
func (e *Events) OnComponentActivated(fn func(ChangeContext)) {
	e.componentActivated = append(e.componentActivated, fn)
}

// EmitBeforeChange dispatches a before-change event.
func (e *Events) EmitBeforeChange(chg ChangeContext) {
	for _, fn := range e.beforeChange {
		fn(chg)
	}
}

// EmitAfterChange dispatches an after-change event.
func (e *Events) EmitAfterChange(chg ChangeContext) {
	for _, fn := range e.afterChange {
		fn(chg)
	}
}

// EmitComponentActivated dispatches a component-activated event.
func (e *Events) EmitComponentActivated(chg ChangeContext) {
	for _, fn := range e.componentActivated {
		fn(chg)
	}
}
