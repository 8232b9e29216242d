package models

// NewsItem is a single headline. Time is display text, not a timestamp.
type NewsItem struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	Time   string `json:"time"`
	Link   string `json:"link"`
}

// MaxNewsItems caps the headline list.
const MaxNewsItems = 10
