package meter

import "github.com/magiconsole/magi"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ magi.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnAttempt(magi.AttemptEvent) {}
func (m *NoopMeter) OnResult(magi.ResultEvent)   {}
