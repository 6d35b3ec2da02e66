package flow

import "testing"

func TestIsQuestion(t *testing.T) {
	questions := []string{
		"Is breakfast included?",
		"what is the itinerary",
		"How many days in Lapland",
		"how much does it cost",
		"do you have vegetarian options",
		"tell me about the hotel",
		"can i bring my dog",
		"are there direct flights",
		"which hotel will we stay at",
		"more details please",
		"really??",
		"Explain the visa process",
	}
	for _, q := range questions {
		if !IsQuestion(q) {
			t.Errorf("IsQuestion(%q) = false, want true", q)
		}
	}

	notQuestions := []string{
		"Asha Rao",
		"4",
		"25/12/2026",
		"none",
		"ready for this package",
		"finalize",
		"london",
		"sounds great, thanks",
		"",
		"   ",
		// "whatsapp" starts with "what" but is not the word "what".
		"whatsapp me the details",
	}
	for _, s := range notQuestions {
		if IsQuestion(s) {
			t.Errorf("IsQuestion(%q) = true, want false", s)
		}
	}
}
