package models

// BriefInput carries the three feeds already serialised as text.
type BriefInput struct {
	Weather string `json:"weather"`
	News    string `json:"news"`
	Stocks  string `json:"stocks"`
}

// Complete reports whether every feed text is present.
func (in BriefInput) Complete() bool {
	return in.Weather != "" && in.News != "" && in.Stocks != ""
}

type Brief struct {
	Brief string `json:"brief"`
}
