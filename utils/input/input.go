package input

import (
	"context"
	"os"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v2"
)

// Init 加载场景
// 功能：按配置从文件、内置场景或MongoDB加载场景并检查引用关系
// 参数：c-配置对象
// 返回：场景或错误
// 算法说明：
// 1. 优先级为 File > Builtin > MongoDB
// 2. MongoDB模式下按name查找一个场景文档
// 3. 加载后调用Validate
func Init(c config.Config) (*Scene, error) {
	var scene *Scene
	var err error
	path := c.Input.Scene
	switch {
	case path.File != "":
		scene, err = LoadFile(path.File)
	case path.Builtin != "":
		scene, err = Builtin(path.Builtin)
	case c.Input.URI != "":
		client := mongoutil.NewClient(c.Input.URI)
		defer client.Disconnect(context.Background())
		scene, err = LoadMongo(context.Background(), client, path)
	default:
		return nil, errors.New("no scene source: set input.scene.file, input.scene.builtin or input.uri")
	}
	if err != nil {
		return nil, err
	}
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	log.Infof("scene %q: %d roads, %d intersections, %d cars",
		scene.Name, len(scene.Roads), len(scene.Intersections), len(scene.Cars))
	return scene, nil
}

// LoadFile 从YAML文件加载场景
func LoadFile(path string) (*Scene, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load scene from file %s", path)
	}
	return Parse(file)
}

// Parse 严格解析YAML场景
func Parse(data []byte) (*Scene, error) {
	var scene Scene
	if err := yaml.UnmarshalStrict(data, &scene); err != nil {
		return nil, errors.Wrap(err, "failed to parse scene")
	}
	return &scene, nil
}

// LoadMongo 从MongoDB加载场景
// 参数：client-MongoDB客户端，path-数据库、集合与场景名
func LoadMongo(ctx context.Context, client *mongo.Client, path config.InputPath) (*Scene, error) {
	coll := mongoutil.GetMongoColl(client, path)
	log.Infof("start fetching scene %q from %s.%s", path.Name, path.DB, path.Col)
	var scene Scene
	if err := coll.FindOne(ctx, bson.M{"name": path.Name}).Decode(&scene); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch scene %q from %s.%s", path.Name, path.DB, path.Col)
	}
	log.Infof("finish fetching scene %q from %s.%s", path.Name, path.DB, path.Col)
	return &scene, nil
}
