package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"git.fiblab.net/general/common/v2/mongoutil"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/lanesim/output"
	"github.com/tsinghua-fib-lab/lanesim/task"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/input"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// 模拟任务名
	job = flag.String("job", "job0", "the name of the whole simulation task")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 环境变量文件，不存在时忽略
	envFile = flag.String("env", ".env", "dotenv file path")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "lanesim")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	if err := godotenv.Load(*envFile); err != nil {
		log.Debugf("no dotenv file loaded: %v", err)
	}

	// 获取配置
	c, err := config.Load(*configPath, *configData)
	if err != nil {
		log.Panic(err)
	}
	c.ApplyEnv()
	log.Infof("%+v", c)

	scene, err := input.Init(c)
	if err != nil {
		log.Panicf("scene load err: %v", err)
	}
	sink, client := newSink(c)
	if client != nil {
		defer client.Disconnect(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	t := task.NewContext(*job, c, scene, sink)
	if err := t.Run(ctx); err != nil {
		log.Errorf("run %s stopped: %v", t.RunID(), err)
	}
}

// newSink 按输出配置创建帧数据输出
// 返回：输出（未配置时为nil），写入轨迹所用的MongoDB客户端（可为nil）
func newSink(c config.Config) (output.Sink, *mongo.Client) {
	var sinks output.Fanout
	var client *mongo.Client
	if m := c.Output.MQTT; m != nil && m.Broker != "" {
		s, err := output.NewMQTTSink(*m)
		if err != nil {
			log.Panic(err)
		}
		log.Infof("publishing frames to %s", s.Topic())
		sinks = append(sinks, s)
	}
	if m := c.Output.Mongo; m != nil {
		if c.Input.URI == "" {
			log.Panic("output.mongo needs input.uri")
		}
		client = mongoutil.NewClient(c.Input.URI)
		sinks = append(sinks, output.NewMongoSink(client, *m))
	}
	if len(sinks) == 0 {
		return nil, client
	}
	return sinks, client
}
