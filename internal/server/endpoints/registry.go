// Package endpoints defines every HTTP route and its matching CLI command.
package endpoints

import "github.com/carrelhq/carrel/internal/api"

// All returns all endpoint instances in registration order.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Upload endpoints
		&UploadEndpoint{},
		&ConfirmUploadEndpoint{},
		&ListUploadsEndpoint{},

		// Document endpoints
		&ListDocumentsEndpoint{},
		&GetDocumentEndpoint{},
		&DeleteDocumentEndpoint{},
		&ReprocessEndpoint{},

		// Retrieval endpoints
		&SearchEndpoint{},
		&PassagesEndpoint{},

		// Job progress stream
		&JobStreamEndpoint{},

		// System endpoints
		&StatsEndpoint{},
		&PurgeRunEndpoint{},
		&ReaperRunEndpoint{},
	}
}
