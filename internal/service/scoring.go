package service

import "github.com/stemsi/exstem-cbt/internal/model"

// Score grades answers against key. Every question in the key counts towards
// total; a missing or empty answer scores zero. When shuffleOptions is set,
// the presented label is translated through mapping before comparison.
func Score(key model.AnswerKey, answers model.AnswerMap, mapping model.OptionMapping, shuffleOptions bool) (correct, total int) {
	for qid, canonical := range key {
		total++

		chosen, ok := answers[qid]
		if !ok || chosen == "" {
			continue
		}
		if shuffleOptions {
			chosen = mapping.Translate(qid, chosen)
		}
		if chosen == canonical {
			correct++
		}
	}
	return correct, total
}
