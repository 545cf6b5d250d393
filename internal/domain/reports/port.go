package reports

import "context"

// Repository port for persisting and querying reports
type Repository interface {
	Save(ctx context.Context, r *Report) error
	Get(ctx context.Context, tenant string, id ReportID) (*Report, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) (PaginatedResult, error)
	LatestByFingerprint(ctx context.Context, tenant, fingerprint string) (*Report, error)
}

// ArchiveStore port (penyimpanan file export)
type ArchiveStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}
