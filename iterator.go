package mondoc

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RowIterator streams results one converted value at a time. Next returns
// ErrIteratorDone when the results are exhausted.
type RowIterator[T any] interface {
	Next() (*T, error)
	Close() error
}

type cursorIterator[T any] struct {
	ctx       context.Context
	cur       *mongo.Cursor
	converter *Converter
}

func (it *cursorIterator[T]) Next() (*T, error) {
	if !it.cur.Next(it.ctx) {
		if err := it.cur.Err(); err != nil {
			return nil, wrapMongoError(err)
		}

		return nil, ErrIteratorDone
	}

	var doc bson.D
	if err := it.cur.Decode(&doc); err != nil {
		return nil, err
	}

	value := new(T)
	if err := it.converter.Read(it.ctx, value, doc); err != nil {
		return nil, err
	}

	return value, nil
}

func (it *cursorIterator[T]) Close() error {
	return it.cur.Close(it.ctx)
}
