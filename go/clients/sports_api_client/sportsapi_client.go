package sports_api_client

import (
	"github.com/mcdev12/leaguedraft/go/clients"
)

type SportsApiClient struct {
	*clients.BaseClient
}

func NewSportsApiClient(apiKey string) *SportsApiClient {
	return NewSportsApiClientWithBaseURL(BaseURL, apiKey)
}

// NewSportsApiClientWithBaseURL points the client at another host, such as a test server.
func NewSportsApiClientWithBaseURL(baseURL, apiKey string) *SportsApiClient {
	client := &SportsApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(RapidAPIKeyHeader, apiKey)
	client.SetHeader(RapidAPIHostHeader, RapidAPIHost)

	return client
}
