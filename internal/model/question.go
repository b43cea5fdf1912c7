package model

// OptionLabels lists the labels an option slot can carry, in order.
var OptionLabels = []string{"A", "B", "C", "D", "E"}

// Option is one labelled answer choice.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question is a single multiple-choice item of a bank (soal bank).
type Question struct {
	ID            int64    `json:"id"`
	BankID        int64    `json:"bank_id"`
	Body          string   `json:"body"`
	Options       []Option `json:"options"`
	CorrectOption string   `json:"correct_option"`
	Explanation   string   `json:"explanation,omitempty"`
	Sequence      int      `json:"sequence"`
}

// OptionsFromColumns builds the ordered option list from the legacy
// option_a..option_e columns. E is only present when non-empty.
func OptionsFromColumns(a, b, c, d string, e *string) []Option {
	opts := []Option{
		{Label: "A", Text: a},
		{Label: "B", Text: b},
		{Label: "C", Text: c},
		{Label: "D", Text: d},
	}
	if e != nil && *e != "" {
		opts = append(opts, Option{Label: "E", Text: *e})
	}
	return opts
}

// QuestionForStudent is a question as rendered during an attempt.
// It never carries the correct option or the explanation.
type QuestionForStudent struct {
	ID      int64    `json:"id"`
	Number  int      `json:"number"`
	Body    string   `json:"body"`
	Options []Option `json:"options"`
}
