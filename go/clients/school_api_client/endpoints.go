package school_api_client

const (
	// API Endpoints
	ClassesEndpoint  = "/api/classes"
	StudentsEndpoint = "/students"

	// Headers
	APIKeyHeader = "X-API-Key"
)
