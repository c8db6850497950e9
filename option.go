package mondoc

import "go.mongodb.org/mongo-driver/bson"

// RepositoryOption configures a repository at construction time.
type RepositoryOption func(o *repositoryOption)

type repositoryOption struct {
	collection string
	logger     *Logger
}

// WithCollectionName overrides the collection derived from entity metadata.
func WithCollectionName(name string) RepositoryOption {
	return func(o *repositoryOption) {
		o.collection = name
	}
}

// WithRepositoryLogger sets the repository's logger.
func WithRepositoryLogger(logger *Logger) RepositoryOption {
	return func(o *repositoryOption) {
		o.logger = logger
	}
}

// QueryOption tunes a single repository call.
type QueryOption func(o *queryOption)

type queryOption struct {
	sort   bson.D
	fields bson.D
	limit  *int64
	skip   *int64
}

// WithSort sorts results by the given property names.
func WithSort(sort bson.D) QueryOption {
	return func(o *queryOption) {
		o.sort = sort
	}
}

// WithProjection restricts the fields read back.
func WithProjection(fields bson.D) QueryOption {
	return func(o *queryOption) {
		o.fields = fields
	}
}

func WithLimit(limit int64) QueryOption {
	return func(o *queryOption) {
		o.limit = &limit
	}
}

func WithSkip(skip int64) QueryOption {
	return func(o *queryOption) {
		o.skip = &skip
	}
}
