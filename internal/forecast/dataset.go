package forecast

import "github.com/andresuchdata/stockcast/internal/domain"

// BuildTrainingExamples slides a window of length w over one item's feature
// series. Each example's target is the normalized consumption of the step
// that follows the window, so a series of n vectors yields n-w examples.
func BuildTrainingExamples(itemID string, series []domain.FeatureVector, w int) []domain.TrainingExample {
	if w <= 0 || len(series) <= w {
		return nil
	}

	examples := make([]domain.TrainingExample, 0, len(series)-w)
	for start := 0; start+w < len(series); start++ {
		seq := make([]domain.FeatureVector, w)
		copy(seq, series[start:start+w])
		examples = append(examples, domain.TrainingExample{
			ItemID:   itemID,
			Sequence: seq,
			Target:   series[start+w].NormalizedConsumption,
		})
	}
	return examples
}
