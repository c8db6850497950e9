package mondoc

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// DBRef is a stored pointer to a document in another collection.
type DBRef struct {
	Collection string `bson:"$ref"`
	ID         any    `bson:"$id"`
	Database   string `bson:"$db,omitempty"`
}

func (r DBRef) IsZero() bool {
	return r.Collection == "" && r.ID == nil && r.Database == ""
}

// dbRefFromDocument recognizes a {$ref,$id[,$db]} document.
func dbRefFromDocument(doc bson.D) (DBRef, bool) {
	ref, hasRef := docLookup(doc, "$ref")
	id, hasID := docLookup(doc, "$id")
	if !hasRef || !hasID {
		return DBRef{}, false
	}

	coll, ok := ref.(string)
	if !ok {
		return DBRef{}, false
	}

	out := DBRef{Collection: coll, ID: id}
	if db, hasDB := docLookup(doc, "$db"); hasDB {
		out.Database, _ = db.(string)
	}

	return out, true
}

// ReferenceCollection identifies where a referenced document lives. An empty
// Database means the loader's default database.
type ReferenceCollection struct {
	Database   string
	Collection string
}

// ReferenceQuery is the filter (plus optional sort) a reference resolution
// executes against a ReferenceCollection.
type ReferenceQuery struct {
	Filter bson.D
	Sort   bson.D
}

// RestoreOrder re-establishes the order of the original reference id list
// for a bulk fetch whose underlying query does not guarantee it. Documents
// whose _id does not appear in ids keep their fetch order at the tail.
func (q ReferenceQuery) RestoreOrder(ids []any, docs []bson.D) []bson.D {
	if len(ids) == 0 || len(docs) < 2 {
		return docs
	}

	remaining := make([]bson.D, len(docs))
	copy(remaining, docs)

	out := make([]bson.D, 0, len(docs))
	for _, id := range ids {
		for i, doc := range remaining {
			if doc == nil {
				continue
			}
			docID, ok := docLookup(doc, idKey)
			if ok && idEqual(docID, id) {
				out = append(out, doc)
				remaining[i] = nil
				break
			}
		}
	}

	for _, doc := range remaining {
		if doc != nil {
			out = append(out, doc)
		}
	}

	return out
}

// ReferenceLoader fetches referenced documents. FetchOne is used for to-one
// associations and errors when the query matches more than one document.
type ReferenceLoader interface {
	FetchOne(ctx context.Context, query ReferenceQuery, target ReferenceCollection) (bson.D, error)
	FetchMany(ctx context.Context, query ReferenceQuery, target ReferenceCollection) ([]bson.D, error)
}

type mongoReferenceLoader struct {
	db *mongo.Database
}

// NewMongoReferenceLoader builds a loader executing reference queries
// against driver collections of the given database (or, for DBRefs carrying
// a $db, a sibling database of the same client).
func NewMongoReferenceLoader(db *mongo.Database) ReferenceLoader {
	return &mongoReferenceLoader{db: db}
}

func (l *mongoReferenceLoader) collection(target ReferenceCollection) *mongo.Collection {
	if target.Database != "" && target.Database != l.db.Name() {
		return l.db.Client().Database(target.Database).Collection(target.Collection)
	}

	return l.db.Collection(target.Collection)
}

func (l *mongoReferenceLoader) FetchOne(ctx context.Context, query ReferenceQuery, target ReferenceCollection) (bson.D, error) {
	opts := options.Find().SetLimit(2)
	if len(query.Sort) > 0 {
		opts.SetSort(query.Sort)
	}

	cur, err := l.collection(target).Find(ctx, query.Filter, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching reference from %s", target.Collection)
	}
	defer cur.Close(ctx)

	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(err, "decoding reference from %s", target.Collection)
	}

	switch len(docs) {
	case 0:
		return nil, nil
	case 1:
		return docs[0], nil
	default:
		return nil, errors.Wrapf(ErrNonUniqueResult, "collection %s", target.Collection)
	}
}

func (l *mongoReferenceLoader) FetchMany(ctx context.Context, query ReferenceQuery, target ReferenceCollection) ([]bson.D, error) {
	opts := options.Find()
	if len(query.Sort) > 0 {
		opts.SetSort(query.Sort)
	}

	cur, err := l.collection(target).Find(ctx, query.Filter, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching references from %s", target.Collection)
	}
	defer cur.Close(ctx)

	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(err, "decoding references from %s", target.Collection)
	}

	return docs, nil
}

// Resolver turns stored reference values (DBRefs, id pointers, pointer
// documents) into the documents they point at.
type Resolver struct {
	loader  ReferenceLoader
	factory *DocumentPointerFactory
	logger  *Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(r *Resolver)

// WithResolverLogger sets the logger used for resolution debug output.
func WithResolverLogger(logger *Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func NewResolver(loader ReferenceLoader, options ...ResolverOption) *Resolver {
	r := &Resolver{
		loader:  loader,
		factory: NewDocumentPointerFactory(),
		logger:  NopLogger(),
	}
	for _, op := range options {
		op(r)
	}

	return r
}

// TargetCollection derives the (database, collection) pair a reference on
// the given property points at.
func (r *Resolver) TargetCollection(prop *Property, target *Entity, ref DBRef) ReferenceCollection {
	out := ReferenceCollection{Database: prop.Database}
	if target != nil {
		out.Collection = target.Collection
	}

	if ref.Collection != "" {
		out.Collection = ref.Collection
	}
	if ref.Database != "" {
		out.Database = ref.Database
	}

	return out
}

// ResolveOne fetches the single document a stored reference value points at.
func (r *Resolver) ResolveOne(ctx context.Context, prop *Property, target *Entity, source any) (bson.D, error) {
	query, coll, err := r.queryFor(prop, target, source)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("resolving reference",
		"property", prop.Name,
		"collection", coll.Collection,
	)

	return r.loader.FetchOne(ctx, query, coll)
}

// ResolveMany fetches the documents for a list of stored reference values,
// grouping by target collection, fetching groups concurrently and restoring
// the order of the original reference list.
func (r *Resolver) ResolveMany(ctx context.Context, prop *Property, target *Entity, sources []any) ([]bson.D, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	type group struct {
		coll ReferenceCollection
		ids  []any
	}

	var groups []*group
	byColl := make(map[ReferenceCollection]*group)
	for _, source := range sources {
		id, coll, err := r.idAndCollection(prop, target, source)
		if err != nil {
			return nil, err
		}

		g, ok := byColl[coll]
		if !ok {
			g = &group{coll: coll}
			byColl[coll] = g
			groups = append(groups, g)
		}
		g.ids = append(g.ids, id)
	}

	results := make([][]bson.D, len(groups))
	eg, gctx := errgroup.WithContext(ctx)
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			query := ReferenceQuery{Filter: bson.D{{Key: idKey, Value: bson.D{{Key: "$in", Value: bson.A(g.ids)}}}}}
			docs, err := r.loader.FetchMany(gctx, query, g.coll)
			if err != nil {
				return err
			}

			results[i] = query.RestoreOrder(g.ids, docs)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []bson.D
	for _, docs := range results {
		out = append(out, docs...)
	}

	return out, nil
}

// queryFor builds the lookup query for one stored reference value.
func (r *Resolver) queryFor(prop *Property, target *Entity, source any) (ReferenceQuery, ReferenceCollection, error) {
	if prop.LookupTemplate != "" && !isDefaultLookup(prop.LookupTemplate) {
		linkage, err := r.factory.linkageFor(prop.LookupTemplate)
		if err != nil {
			return ReferenceQuery{}, ReferenceCollection{}, err
		}

		filter, err := linkage.filterFor(source)
		if err != nil {
			return ReferenceQuery{}, ReferenceCollection{}, err
		}

		return ReferenceQuery{Filter: filter}, r.TargetCollection(prop, target, DBRef{}), nil
	}

	id, coll, err := r.idAndCollection(prop, target, source)
	if err != nil {
		return ReferenceQuery{}, ReferenceCollection{}, err
	}

	return ReferenceQuery{Filter: bson.D{{Key: idKey, Value: id}}}, coll, nil
}

// idAndCollection extracts the target id and collection from one stored
// reference value: a DBRef, a {$ref,$id} document, or a plain id.
func (r *Resolver) idAndCollection(prop *Property, target *Entity, source any) (any, ReferenceCollection, error) {
	switch src := source.(type) {
	case DBRef:
		return src.ID, r.TargetCollection(prop, target, src), nil
	case *DBRef:
		if src == nil {
			return nil, ReferenceCollection{}, errors.New("mondoc: nil DBRef")
		}
		return src.ID, r.TargetCollection(prop, target, *src), nil
	case bson.D:
		if ref, ok := dbRefFromDocument(src); ok {
			return ref.ID, r.TargetCollection(prop, target, ref), nil
		}
		if id, ok := docLookup(src, idKey); ok {
			return id, r.TargetCollection(prop, target, DBRef{}), nil
		}
		return nil, ReferenceCollection{}, errors.Errorf("mondoc: document %v is not a reference pointer", src)
	default:
		return source, r.TargetCollection(prop, target, DBRef{}), nil
	}
}
