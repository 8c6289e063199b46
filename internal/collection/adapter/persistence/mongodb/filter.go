package mongodb

import (
	"fmt"
	"reflect"

	"firestore-collection/internal/collection/domain/model"
	apperrors "firestore-collection/internal/shared/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// buildFilter translates the where clauses; several clauses are joined with $and
func buildFilter(query model.Query) (bson.M, error) {
	if len(query.Where) == 0 {
		return bson.M{}, nil
	}
	if len(query.Where) == 1 {
		return singleFilter(query.Where[0])
	}
	clauses := make(bson.A, 0, len(query.Where))
	for _, f := range query.Where {
		clause, err := singleFilter(f)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return bson.M{"$and": clauses}, nil
}

func singleFilter(f model.Filter) (bson.M, error) {
	if f.Field == "" {
		return nil, apperrors.NewValidationError("filter field is empty").WithDetail("operator", f.Operator)
	}

	switch f.Operator {
	case model.OperatorIn, model.OperatorNotIn, model.OperatorArrayContainsAny:
		if !isList(f.Value) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("operator %s needs a list value", f.Operator)).
				WithDetail("field", f.Field)
		}
	}

	switch f.Operator {
	case model.OperatorEqual:
		return bson.M{f.Field: f.Value}, nil
	case model.OperatorNotEqual:
		return bson.M{f.Field: bson.M{"$ne": f.Value}}, nil
	case model.OperatorGreaterThan:
		return bson.M{f.Field: bson.M{"$gt": f.Value}}, nil
	case model.OperatorGreaterThanOrEqual:
		return bson.M{f.Field: bson.M{"$gte": f.Value}}, nil
	case model.OperatorLessThan:
		return bson.M{f.Field: bson.M{"$lt": f.Value}}, nil
	case model.OperatorLessThanOrEqual:
		return bson.M{f.Field: bson.M{"$lte": f.Value}}, nil
	case model.OperatorIn:
		return bson.M{f.Field: bson.M{"$in": f.Value}}, nil
	case model.OperatorNotIn:
		return bson.M{f.Field: bson.M{"$nin": f.Value}}, nil
	case model.OperatorArrayContains:
		return bson.M{f.Field: bson.M{"$elemMatch": bson.M{"$eq": f.Value}}}, nil
	case model.OperatorArrayContainsAny:
		return bson.M{f.Field: bson.M{"$in": f.Value}}, nil
	default:
		return nil, apperrors.NewValidationError("unsupported filter operator: " + f.Operator).
			WithDetail("field", f.Field)
	}
}

func isList(v interface{}) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// buildFindOptions applies order, offset and limit. _id is always the last
// sort key so results are stable.
func buildFindOptions(query model.Query) *options.FindOptions {
	opts := options.Find()
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}
	if query.Offset > 0 {
		opts.SetSkip(int64(query.Offset))
	}

	sort := bson.D{}
	hasID := false
	for _, o := range query.OrderBy {
		order := 1
		if o.Direction == model.Descending {
			order = -1
		}
		if o.Field == model.FieldID {
			hasID = true
		}
		sort = append(sort, bson.E{Key: o.Field, Value: order})
	}
	if !hasID {
		sort = append(sort, bson.E{Key: model.FieldID, Value: 1})
	}
	return opts.SetSort(sort)
}

// toRecord converts a decoded document into plain Go maps and slices
func toRecord(doc bson.M) model.Record {
	out := make(model.Record, len(doc))
	for k, v := range doc {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int32:
		return int64(t)
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}
