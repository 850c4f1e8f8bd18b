package ven

// NoopHandler is an EventHandler stub: empty query payload, no events.
// Deployments plug their protocol codec instead.
type NoopHandler struct{}

var _ EventHandler = NoopHandler{}

func (NoopHandler) BuildRequestPayload() ([]byte, error)      { return nil, nil }
func (NoopHandler) HandlePayload(body []byte) ([]byte, error) { return nil, nil }
func (NoopHandler) ActiveEvents() []Event                     { return nil }
func (NoopHandler) RemoveEvents(ids []string)                 {}
func (NoopHandler) CheckTargetInfo(Event) bool                { return false }
