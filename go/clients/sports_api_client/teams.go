package sports_api_client

import (
	"context"
	"fmt"
	"net/url"
)

type Team struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	City    string `json:"city"`
	Stadium string `json:"stadium"`
	Logo    string `json:"logo"`
}

type TeamsResponse struct {
	Get        string                 `json:"get"`
	Parameters map[string]interface{} `json:"parameters"`
	Errors     interface{}            `json:"errors"`
	Results    int                    `json:"results"`
	Response   []Team                 `json:"response"`
}

func (c *SportsApiClient) GetNFLTeams(ctx context.Context) ([]Team, error) {
	return c.GetTeamsByLeagueAndSeason(ctx, NFLLeagueID, DefaultSeason)
}

func (c *SportsApiClient) GetTeamsByLeagueAndSeason(ctx context.Context, leagueID, season string) ([]Team, error) {
	var response TeamsResponse
	query := url.Values{"league": {leagueID}, "season": {season}}
	if err := c.GetJSON(ctx, TeamsEndpoint, query, &response); err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}

	// The API reports errors as an empty list on success and an object on failure.
	if errMap, ok := response.Errors.(map[string]interface{}); ok && len(errMap) > 0 {
		return nil, fmt.Errorf("API returned errors: %v", response.Errors)
	}

	return response.Response, nil
}
