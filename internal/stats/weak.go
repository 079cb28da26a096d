package stats

import (
	"sort"

	"github.com/verte-zerg/sqlquest/internal/model"
)

// AggregateAttempts groups attempts per exercise, ordered by exercise id.
func AggregateAttempts(attempts []model.Attempt) []model.ExerciseAggregate {
	byID := map[int]*model.ExerciseAggregate{}
	for _, a := range attempts {
		agg, ok := byID[a.ExerciseID]
		if !ok {
			agg = &model.ExerciseAggregate{ExerciseID: a.ExerciseID}
			byID[a.ExerciseID] = agg
		}
		agg.Attempts++
		if a.Passed {
			agg.Passed++
		}
	}
	out := make([]model.ExerciseAggregate, 0, len(byID))
	for _, agg := range byID {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExerciseID < out[j].ExerciseID
	})
	return out
}

// SelectWeakExercises returns up to top exercises with at least one failed
// attempt, lowest pass rate first. Ties go to the exercise tried more often.
func SelectWeakExercises(aggs []model.ExerciseAggregate, top int) []model.ExerciseAggregate {
	candidates := make([]model.ExerciseAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Passed < agg.Attempts {
			candidates = append(candidates, agg)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := candidates[i].PassRate(), candidates[j].PassRate()
		if ri != rj {
			return ri < rj
		}
		if candidates[i].Attempts != candidates[j].Attempts {
			return candidates[i].Attempts > candidates[j].Attempts
		}
		return candidates[i].ExerciseID < candidates[j].ExerciseID
	})
	if top > 0 && top < len(candidates) {
		candidates = candidates[:top]
	}
	return candidates
}
