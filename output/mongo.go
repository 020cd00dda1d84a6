package output

import (
	"context"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 默认批量写入帧数
const defaultBatch = 100

// FrameCollection 帧数据写入的集合，*mongo.Collection满足该接口
type FrameCollection interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// MongoSink 将帧数据批量写入MongoDB
// 功能：缓存帧数据，满batch帧时调用InsertMany写入，Close时写入剩余部分
type MongoSink struct {
	coll   FrameCollection
	batch  int
	buffer []interface{}
}

// NewMongoSink 创建写入MongoDB的输出
// 参数：client-MongoDB客户端，c-输出配置
func NewMongoSink(client *mongo.Client, c config.MongoOutput) *MongoSink {
	log.Infof("frames will be written to %s.%s", c.DB, c.Col)
	return NewMongoSinkWithCollection(mongoutil.GetMongoColl(client, c), c.Batch)
}

// NewMongoSinkWithCollection 使用指定集合创建输出
// 参数：batch-批量写入帧数，<=0时使用默认值
func NewMongoSinkWithCollection(coll FrameCollection, batch int) *MongoSink {
	if batch <= 0 {
		batch = defaultBatch
	}
	return &MongoSink{
		coll:   coll,
		batch:  batch,
		buffer: make([]interface{}, 0, batch),
	}
}

func (s *MongoSink) Publish(ctx context.Context, f Frame) error {
	s.buffer = append(s.buffer, f)
	if len(s.buffer) < s.batch {
		return nil
	}
	return s.Flush(ctx)
}

// Flush 写入缓存中的全部帧
// 说明：写入失败时丢弃这一批，避免缓存无限增长
func (s *MongoSink) Flush(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}
	docs := s.buffer
	s.buffer = make([]interface{}, 0, s.batch)
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return errors.Wrapf(err, "failed to insert %d frames", len(docs))
	}
	return nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.Flush(ctx)
}
