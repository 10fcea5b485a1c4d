package database

import "go.mongodb.org/mongo-driver/mongo"

// Table is a record type that knows where it is stored.
type Table interface {
	GetTableName() string
}

// Collection returns the collection t lives in.
func Collection(db *mongo.Database, t Table) *mongo.Collection {
	return db.Collection(t.GetTableName())
}
