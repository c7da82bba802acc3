package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedActor string

func (a namedActor) Name() string            { return string(a) }
func (a namedActor) Start()                  {}
func (a namedActor) IsRunnable() bool        { return false }
func (a namedActor) NextStepTime() TimePoint { return Infinity }
func (a namedActor) Step()                   {}
func (a namedActor) Shutdown()               {}

func TestActorContext_EnterRestores(t *testing.T) {
	var ctx ActorContext
	assert.Equal(t, "World", ctx.CurrentName())

	leaveA := ctx.Enter(namedActor("A"))
	assert.Equal(t, "A", ctx.CurrentName())

	leaveB := ctx.Enter(namedActor("B"))
	assert.Equal(t, "B", ctx.CurrentName())

	leaveB()
	assert.Equal(t, "A", ctx.CurrentName())
	leaveA()
	assert.Nil(t, ctx.Current())
}

func TestTimePoint_Arithmetic(t *testing.T) {
	tp := TimePoint(100)
	assert.Equal(t, TimePoint(150), tp.Add(50))
	assert.Equal(t, Jiffies(30), TimePoint(130).Sub(tp))
	assert.True(t, tp.Before(101))
	assert.Equal(t, TimePoint(101), MaxTime(tp, 101))
	assert.Equal(t, tp, MinTime(tp, 101))
}
