package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository - MongoDB 이력 저장소
type MongoRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRepository - 연결 후 Ping 확인
func NewMongoRepository(ctx context.Context, uri, database string) (*MongoRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	return &MongoRepository{
		client:     client,
		collection: client.Database(database).Collection("tryon_history"),
	}, nil
}

// Close - 연결 종료
func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Add - 이력 추가
func (m *MongoRepository) Add(ctx context.Context, record *TryOnRecord) error {
	if _, err := m.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}

// Update - $set 으로 비어있지 않은 필드만 병합
func (m *MongoRepository) Update(ctx context.Context, recordID string, update RecordUpdate) error {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil
	}

	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	res, err := m.collection.UpdateOne(ctx, bson.M{"_id": recordID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update history: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Get - 단건 조회
func (m *MongoRepository) Get(ctx context.Context, recordID string) (*TryOnRecord, error) {
	var rec TryOnRecord
	err := m.collection.FindOne(ctx, bson.M{"_id": recordID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return &rec, nil
}

// List - 최신순 목록
func (m *MongoRepository) List(ctx context.Context, limit, offset int) ([]TryOnRecord, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if offset > 0 {
		findOptions.SetSkip(int64(offset))
	}
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := m.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	records := []TryOnRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return records, nil
}

// Count - 전체 건수
func (m *MongoRepository) Count(ctx context.Context) (int, error) {
	total, err := m.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return int(total), nil
}

// Delete - 삭제
func (m *MongoRepository) Delete(ctx context.Context, recordID string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": recordID})
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}
