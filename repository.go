package mondoc

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Repository is a typed collection facade. Filters, updates, sorts and
// projections are written against domain property names and rewritten to
// storage field names before they reach the driver; documents read back are
// converted into domain values, references included.
type Repository[K comparable, T any] interface {
	Get(ctx context.Context, id K, dest *T, options ...QueryOption) error
	FindOne(ctx context.Context, filter bson.D, dest *T, options ...QueryOption) error
	Select(ctx context.Context, filter bson.D, dest *[]T, options ...QueryOption) error
	Count(ctx context.Context, filter bson.D, options ...QueryOption) (int64, error)
	Insert(ctx context.Context, value T, options ...QueryOption) (K, error)
	InsertAll(ctx context.Context, values []T, options ...QueryOption) ([]K, error)
	Update(ctx context.Context, id K, keyvals bson.D, options ...QueryOption) error
	UpdateMany(ctx context.Context, filter bson.D, update bson.D, options ...QueryOption) (int64, error)
	Upsert(ctx context.Context, id K, value T, options ...QueryOption) error
	Delete(ctx context.Context, ids []K, options ...QueryOption) error
	Iterator(ctx context.Context, filter bson.D, options ...QueryOption) (RowIterator[T], error)
}
