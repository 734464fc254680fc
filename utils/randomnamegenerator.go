package utils

import (
	"math/rand"

	"github.com/Pallinder/go-randomdata"
)

// RandomNameGenerator produces unique silly names. Sequence depends only on
// seed, so exports of the same scene get the same names.
type RandomNameGenerator struct {
	used map[string]struct{}
	seed int64
}

func NewRandomNameGenerator(seed int64) *RandomNameGenerator {
	return &RandomNameGenerator{seed: seed}
}

func (rng *RandomNameGenerator) RandomName() string {
	if rng.used == nil {
		rng.used = make(map[string]struct{})
		randomdata.CustomRand(rand.New(rand.NewSource(rng.seed)))
	}
	for {
		name := randomdata.SillyName()
		// avoid duplicate names
		if _, exists := rng.used[name]; !exists {
			rng.used[name] = struct{}{}
			return name
		}
	}
}

// Reserve marks name as used so RandomName never returns it.
func (rng *RandomNameGenerator) Reserve(name string) {
	if rng.used == nil {
		rng.used = make(map[string]struct{})
		randomdata.CustomRand(rand.New(rand.NewSource(rng.seed)))
	}
	rng.used[name] = struct{}{}
}
