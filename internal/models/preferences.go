package models

// Preferences is the typed view over the user's saved settings.
type Preferences struct {
	Location   string   `json:"location"`
	Stocks     []string `json:"stocks"`
	SpotifyURL string   `json:"spotifyUrl"`
}
