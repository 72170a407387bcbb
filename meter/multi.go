package meter

import "github.com/magiconsole/magi"

// Multi fans events out to several meters in order.
type Multi []magi.Meter

var _ magi.Meter = Multi(nil)

func (m Multi) OnAttempt(e magi.AttemptEvent) {
	for _, mm := range m {
		mm.OnAttempt(e)
	}
}

func (m Multi) OnResult(e magi.ResultEvent) {
	for _, mm := range m {
		mm.OnResult(e)
	}
}
