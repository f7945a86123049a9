package ports

import (
	"context"

	"biascope/domain/bias"
)

// ReportSink is the reporting collaborator: it receives the assembled
// BiasReport as a stable, serializable record. Implementations render or
// persist; the core never mutates a report after handing it over.
type ReportSink interface {
	Write(ctx context.Context, report *bias.BiasReport) error
}
