package service

import "sync"

// AdaptiveConcurrencyController bounds how many block-extraction calls run at
// once, AIMD style: slow additive ramp-up on sustained success, multiplicative
// back-off on rate limiting. One instance per job run, shared by all in-flight
// tasks and mutated only from their completion callbacks.
type AdaptiveConcurrencyController struct {
	mu sync.Mutex

	current int
	min     int
	max     int

	successStreak int
	failureStreak int
}

// successesPerIncrease is how many consecutive successes earn one extra slot.
const successesPerIncrease = 5

// rateLimitFactor shrinks the limit when a provider starts throttling.
const rateLimitFactor = 0.6

// NewAdaptiveConcurrencyController creates a controller starting at initial,
// bounded to [min, max].
func NewAdaptiveConcurrencyController(initial, min, max int) *AdaptiveConcurrencyController {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	if initial < min {
		initial = min
	}
	if initial > max {
		initial = max
	}
	return &AdaptiveConcurrencyController{
		current: initial,
		min:     min,
		max:     max,
	}
}

// Limit returns the current concurrency limit.
func (c *AdaptiveConcurrencyController) Limit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnSuccess records a successful call. Five in a row raise the limit by one.
func (c *AdaptiveConcurrencyController) OnSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureStreak = 0
	c.successStreak++
	if c.successStreak >= successesPerIncrease {
		c.successStreak = 0
		if c.current < c.max {
			c.current++
		}
	}
}

// OnRateLimit records a throttled call and backs the limit off multiplicatively.
func (c *AdaptiveConcurrencyController) OnRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successStreak = 0
	c.failureStreak++

	next := int(float64(c.current) * rateLimitFactor)
	if next < c.min {
		next = c.min
	}
	c.current = next
}

// OnError records a generic failure. Generic errors are noise, not a load
// signal, so the limit stays put.
func (c *AdaptiveConcurrencyController) OnError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successStreak = 0
	c.failureStreak++
}
