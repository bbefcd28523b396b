package service

import "math/rand"

// FairShuffle возвращает несмещённую перестановку списка ID вопросов
// (Фишер–Йетс: от последнего индекса к первому, обмен со случайным индексом не правее текущего).
// Вызывается один раз при создании челленджа; результат замораживается в question_ids,
// поэтому оба участника дуэли играют одну и ту же последовательность.
func FairShuffle(questionIDs []uint) []uint {
	shuffled := make([]uint, len(questionIDs))
	copy(shuffled, questionIDs)
	shuffleInPlace(shuffled, rand.Intn)
	return shuffled
}

// shuffleInPlace выделен отдельно, чтобы тесты могли подставить детерминированный источник
func shuffleInPlace(ids []uint, intn func(n int) int) {
	for i := len(ids) - 1; i >= 1; i-- {
		j := intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}
