// Package school_api_client talks to the school management system to look
// up class membership for roster reconciliation.
package school_api_client

import (
	"github.com/Mhrnqaruni/ata-quiz-engine/go/clients"
)

type SchoolApiClient struct {
	*clients.BaseClient
}

func NewSchoolApiClient(baseURL, apiKey string) *SchoolApiClient {
	client := &SchoolApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(APIKeyHeader, apiKey)

	return client
}
