package mondoc

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository[K comparable, T any] struct {
	entity     *Entity
	collection *mongo.Collection
	converter  *Converter
	mapper     *QueryMapper
	logger     *Logger
}

// NewMongoRepository builds a repository for T backed by the collection its
// entity metadata names (or the WithCollectionName override).
func NewMongoRepository[K comparable, T any](db *mongo.Database, converter *Converter, options ...RepositoryOption) (Repository[K, T], error) {
	opt := &repositoryOption{logger: NopLogger()}
	for _, op := range options {
		op(opt)
	}

	var model T
	typ := reflect.TypeOf(model)
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, errors.Errorf("mondoc: repository model must be a struct, got %v", typ)
	}

	entity := converter.Mapping().EntityOfType(typ)
	if entity == nil {
		return nil, errors.Wrapf(ErrNoEntity, "type %s", typ)
	}

	collName := entity.Collection
	if opt.collection != "" {
		collName = opt.collection
	}

	return &mongoRepository[K, T]{
		entity:     entity,
		collection: db.Collection(collName),
		converter:  converter,
		mapper:     NewQueryMapper(converter, WithQueryLogger(opt.logger)),
		logger:     opt.logger.WithEntity(entity.Name),
	}, nil
}

func (m *mongoRepository[K, T]) Get(ctx context.Context, id K, dest *T, options ...QueryOption) error {
	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}

	mappedID, err := m.mapper.ConvertID(id, m.entity)
	if err != nil {
		return err
	}

	findOpts := mongoOptions.FindOne()
	if len(opt.fields) > 0 {
		findOpts.SetProjection(m.mapper.GetMappedFields(opt.fields, m.entity))
	}

	var doc bson.D
	if err := m.collection.FindOne(ctx, bson.D{{Key: idKey, Value: mappedID}}, findOpts).Decode(&doc); err != nil {
		return wrapMongoError(err)
	}

	return m.converter.Read(ctx, dest, doc)
}

func (m *mongoRepository[K, T]) FindOne(ctx context.Context, filter bson.D, dest *T, options ...QueryOption) error {
	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}

	mapped, err := m.mapFilter(filter)
	if err != nil {
		return err
	}

	findOpts := mongoOptions.FindOne()
	if len(opt.sort) > 0 {
		findOpts.SetSort(m.mapper.GetMappedSort(opt.sort, m.entity))
	}
	if len(opt.fields) > 0 {
		findOpts.SetProjection(m.mapper.GetMappedFields(opt.fields, m.entity))
	}
	if opt.skip != nil {
		findOpts.SetSkip(*opt.skip)
	}

	var doc bson.D
	if err := m.collection.FindOne(ctx, mapped, findOpts).Decode(&doc); err != nil {
		return wrapMongoError(err)
	}

	return m.converter.Read(ctx, dest, doc)
}

func (m *mongoRepository[K, T]) Select(ctx context.Context, filter bson.D, dest *[]T, options ...QueryOption) error {
	it, err := m.Iterator(ctx, filter, options...)
	if err != nil {
		return err
	}
	defer it.Close()

	out := make([]T, 0)
	for {
		value, err := it.Next()
		if errors.Is(err, ErrIteratorDone) {
			break
		}
		if err != nil {
			return err
		}
		out = append(out, *value)
	}

	*dest = out

	return nil
}

func (m *mongoRepository[K, T]) Count(ctx context.Context, filter bson.D, options ...QueryOption) (int64, error) {
	mapped, err := m.mapFilter(filter)
	if err != nil {
		return 0, err
	}

	n, err := m.collection.CountDocuments(ctx, mapped)
	if err != nil {
		return 0, wrapMongoError(err)
	}

	return n, nil
}

func (m *mongoRepository[K, T]) Insert(ctx context.Context, value T, options ...QueryOption) (K, error) {
	var zeroKey K

	doc, err := m.converter.Write(value)
	if err != nil {
		return zeroKey, err
	}

	res, err := m.collection.InsertOne(ctx, doc)
	if err != nil {
		return zeroKey, wrapMongoError(err)
	}

	key, ok := res.InsertedID.(K)
	if !ok {
		return zeroKey, errors.Errorf("mondoc: inserted id %T is not the repository key type", res.InsertedID)
	}

	return key, nil
}

func (m *mongoRepository[K, T]) InsertAll(ctx context.Context, values []T, options ...QueryOption) ([]K, error) {
	docs := make([]any, len(values))
	for i, value := range values {
		doc, err := m.converter.Write(value)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}

	res, err := m.collection.InsertMany(ctx, docs)
	if err != nil {
		return nil, wrapMongoError(err)
	}

	return sliceMap(res.InsertedIDs, func(id any) K {
		key, _ := id.(K)
		return key
	}), nil
}

func (m *mongoRepository[K, T]) Update(ctx context.Context, id K, keyvals bson.D, options ...QueryOption) error {
	mappedID, err := m.mapper.ConvertID(id, m.entity)
	if err != nil {
		return err
	}

	update, err := m.mapper.GetMappedObject(bson.D{{Key: "$set", Value: keyvals}}, m.entity)
	if err != nil {
		return err
	}

	up, err := m.collection.UpdateByID(ctx, mappedID, update)
	if err != nil {
		return wrapMongoError(err)
	}

	if up.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (m *mongoRepository[K, T]) UpdateMany(ctx context.Context, filter bson.D, update bson.D, options ...QueryOption) (int64, error) {
	mappedFilter, err := m.mapFilter(filter)
	if err != nil {
		return 0, err
	}

	mappedUpdate, err := m.mapper.GetMappedObject(update, m.entity)
	if err != nil {
		return 0, err
	}

	res, err := m.collection.UpdateMany(ctx, mappedFilter, mappedUpdate)
	if err != nil {
		return 0, wrapMongoError(err)
	}

	return res.ModifiedCount, nil
}

func (m *mongoRepository[K, T]) Upsert(ctx context.Context, id K, value T, options ...QueryOption) error {
	mappedID, err := m.mapper.ConvertID(id, m.entity)
	if err != nil {
		return err
	}

	doc, err := m.converter.Write(value)
	if err != nil {
		return err
	}

	_, err = m.collection.ReplaceOne(ctx,
		bson.D{{Key: idKey, Value: mappedID}}, doc,
		mongoOptions.Replace().SetUpsert(true))
	if err != nil {
		return wrapMongoError(err)
	}

	return nil
}

func (m *mongoRepository[K, T]) Delete(ctx context.Context, ids []K, options ...QueryOption) error {
	mapped := make(bson.A, len(ids))
	for i, id := range ids {
		v, err := m.mapper.ConvertID(id, m.entity)
		if err != nil {
			return err
		}
		mapped[i] = v
	}

	res, err := m.collection.DeleteMany(ctx, bson.D{{Key: idKey, Value: bson.D{{Key: "$in", Value: mapped}}}})
	if err != nil {
		return wrapMongoError(err)
	}

	m.logger.Debug("deleted documents", "count", res.DeletedCount)

	return nil
}

func (m *mongoRepository[K, T]) Iterator(ctx context.Context, filter bson.D, options ...QueryOption) (RowIterator[T], error) {
	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}

	mapped, err := m.mapFilter(filter)
	if err != nil {
		return nil, err
	}

	findOpts := mongoOptions.Find()
	if len(opt.sort) > 0 {
		findOpts.SetSort(m.mapper.GetMappedSort(opt.sort, m.entity))
	}
	if len(opt.fields) > 0 {
		findOpts.SetProjection(m.mapper.GetMappedFields(opt.fields, m.entity))
	}
	if opt.limit != nil {
		findOpts.SetLimit(*opt.limit)
	}
	if opt.skip != nil {
		findOpts.SetSkip(*opt.skip)
	}

	cur, err := m.collection.Find(ctx, mapped, findOpts)
	if err != nil {
		return nil, wrapMongoError(err)
	}

	return &cursorIterator[T]{ctx: ctx, cur: cur, converter: m.converter}, nil
}

func (m *mongoRepository[K, T]) mapFilter(filter bson.D) (bson.D, error) {
	if filter == nil {
		return bson.D{}, nil
	}

	return m.mapper.GetMappedObject(filter, m.entity)
}

func wrapMongoError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrKeyAlreadyExists
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Wrap(ErrNotFound, err.Error())
	}

	return err
}
