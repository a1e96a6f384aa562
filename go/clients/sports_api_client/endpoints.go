package sports_api_client

const (
	BaseURL = "https://v1.american-football.api-sports.io"

	TeamsEndpoint = "/teams"

	NFLLeagueID   = "1"
	DefaultSeason = "2025"

	RapidAPIKeyHeader  = "X-RapidAPI-Key"
	RapidAPIHostHeader = "X-RapidAPI-Host"
	RapidAPIHost       = "v1.american-football.api-sports.io"
)
