// Package selector resolves a blueprint against a pool of candidate questions.
//
// Candidates are bucketed by exact (part, marks). Each slot draws uniformly at
// random without replacement from its bucket, so no question appears twice in
// one paper. A slot needing an alternative draws the main question first and
// the alternative from what remains.
package selector

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/qpaper/internal/blueprint"
	"github.com/pavelanni/qpaper/internal/model"
)

// Rand is the random source used for draws. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// ShortageError reports a slot whose bucket cannot supply the draws it needs.
type ShortageError struct {
	Slot      int // index of the slot in the blueprint
	Part      model.Part
	Marks     int
	Required  int
	Available int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("not enough %d-mark questions for Part %s: need %d, have %d",
		e.Marks, e.Part, e.Required, e.Available)
}

type options struct {
	rng Rand
	ids func() string
}

// Option configures Select.
type Option func(*options)

// WithRand sets the random source.
func WithRand(r Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithSeed draws from a PCG source seeded with seed, so equal seeds over equal pools draw alike.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// WithIDs sets the generator for entry ids. It must return a distinct value per call.
func WithIDs(next func() string) Option {
	return func(o *options) { o.ids = next }
}

type bucketKey struct {
	part  model.Part
	marks int
}

// Select draws questions for every slot of bp from pool. On a shortage the whole
// selection fails and no entries are returned. pool is not modified.
func Select(pool []model.Question, bp blueprint.Blueprint, opts ...Option) ([]model.PaperQuestion, error) {
	o := options{ids: uuidV7}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	buckets := make(map[bucketKey][]model.Question)
	for _, q := range pool {
		k := bucketKey{part: model.Part(strings.ToUpper(string(q.Part))), marks: q.Marks}
		buckets[k] = append(buckets[k], q)
	}

	var entries []model.PaperQuestion
	for i, slot := range bp.Slots {
		k := bucketKey{part: model.Part(strings.ToUpper(string(slot.Part))), marks: slot.Marks}
		bucket := buckets[k]
		if need := slot.Draws(); len(bucket) < need {
			return nil, &ShortageError{
				Slot:      i,
				Part:      k.part,
				Marks:     slot.Marks,
				Required:  need,
				Available: len(bucket),
			}
		}

		for n := 0; n < slot.Count; n++ {
			var main model.Question
			main, bucket = draw(o.rng, bucket)
			entry := model.PaperQuestion{
				ID:         o.ids(),
				SourceID:   main.ID,
				Content:    main.Content,
				Marks:      main.Marks,
				KLevel:     main.KLevel,
				Part:       main.Part,
				COLevel:    main.COLevel,
				HasFormula: main.HasFormula,
			}
			if slot.NeedsOr {
				var alt model.Question
				alt, bucket = draw(o.rng, bucket)
				entry.HasOr = true
				entry.Alt = &model.Alternative{
					SourceID:   alt.ID,
					Content:    alt.Content,
					Marks:      alt.Marks,
					KLevel:     alt.KLevel,
					Part:       alt.Part,
					COLevel:    alt.COLevel,
					HasFormula: alt.HasFormula,
				}
			}
			entries = append(entries, entry)
		}
		buckets[k] = bucket
	}
	return entries, nil
}

// draw removes a random element from bucket and returns it with the remainder in original order.
func draw(rng Rand, bucket []model.Question) (model.Question, []model.Question) {
	i := rng.IntN(len(bucket))
	q := bucket[i]
	rest := make([]model.Question, 0, len(bucket)-1)
	rest = append(rest, bucket[:i]...)
	rest = append(rest, bucket[i+1:]...)
	return q, rest
}

func uuidV7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
