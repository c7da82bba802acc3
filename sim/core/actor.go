package core

import "github.com/sirupsen/logrus"

// Actor is a participant driven by the World loop: the network or a server
// (client and adversary hosts are servers too).
type Actor interface {
	Name() string
	Start()
	IsRunnable() bool
	// NextStepTime is only meaningful while IsRunnable returns true.
	NextStepTime() TimePoint
	Step()
	Shutdown()
}

// ActorContext tracks which actor is currently executing. Exactly one actor
// is active at any instant.
type ActorContext struct {
	current Actor
}

// Current returns the active actor, or nil when the World itself is running.
func (c *ActorContext) Current() Actor {
	return c.current
}

// CurrentName returns the active actor's name, "World" when none is active.
func (c *ActorContext) CurrentName() string {
	if c.current == nil {
		return "World"
	}
	return c.current.Name()
}

// Enter makes a the active actor and returns a func restoring the previous one.
//
//	leave := ctx.Enter(server)
//	defer leave()
func (c *ActorContext) Enter(a Actor) (leave func()) {
	prev := c.current
	c.current = a
	return func() { c.current = prev }
}

// Env is the slice of World state that actors and their collaborators see.
type Env interface {
	Now() TimePoint
	StepNumber() uint64
	Random() *RandomSource
	Actors() *ActorContext
	Logger() *logrus.Logger
}
