// Package cache keeps the cars registered with the recording pipeline so
// handlers can resolve ids without going back to storage.
package cache

import (
	"errors"
	"sort"
	"sync"

	"github.com/racecontrol/racesim/pkg/core"
)

// ErrUnknownCar is returned when a record references a car that was never registered.
var ErrUnknownCar = errors.New("unknown car")

// CarCache holds the identity of every car in the current race.
type CarCache struct {
	m    sync.Mutex
	cars map[int]core.Car
}

func NewCarCache() *CarCache {
	return &CarCache{
		cars: make(map[int]core.Car),
	}
}

// Reset forgets all cars, called when a new race starts.
func (c *CarCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.cars = make(map[int]core.Car)
}

// Add registers a car. Re-adding an id replaces the previous entry.
func (c *CarCache) Add(car core.Car) {
	c.m.Lock()
	defer c.m.Unlock()
	c.cars[car.ID] = car
}

func (c *CarCache) Get(id int) (core.Car, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	car, ok := c.cars[id]
	return car, ok
}

// Require returns the car or ErrUnknownCar.
func (c *CarCache) Require(id int) (core.Car, error) {
	if car, ok := c.Get(id); ok {
		return car, nil
	}
	return core.Car{}, ErrUnknownCar
}

func (c *CarCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.cars)
}

// All returns the registered cars ordered by id.
func (c *CarCache) All() []core.Car {
	c.m.Lock()
	defer c.m.Unlock()
	out := make([]core.Car, 0, len(c.cars))
	for _, car := range c.cars {
		out = append(out, car)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
